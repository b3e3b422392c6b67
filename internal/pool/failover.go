package pool

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shl888/feedcore/internal/wsconn"
)

// selectBestStandby picks, among standbys that are connected and not
// active, the one minimizing (seconds_since_last_message, reconnect_count,
// symbol_count). Returns -1 if none qualify.
func selectBestStandby(standbys []*wsconn.Connection) int {
	best := -1
	var bestHealth wsconn.Health
	for i, s := range standbys {
		h := s.Health()
		if !h.Connected || h.IsActive {
			continue
		}
		if best == -1 || less(h, bestHealth) {
			best = i
			bestHealth = h
		}
	}
	return best
}

func less(a, b wsconn.Health) bool {
	if a.SecondsSinceLastMessage != b.SecondsSinceLastMessage {
		return a.SecondsSinceLastMessage < b.SecondsSinceLastMessage
	}
	if a.ReconnectCount != b.ReconnectCount {
		return a.ReconnectCount < b.ReconnectCount
	}
	return a.SymbolsCount < b.SymbolsCount
}

// failover executes the six-step algorithm on master index i's failure.
// If switch_role on the standby fails, the failed master gets its slice back
// and is reconnected in place, the standby stays in the standby list, and
// step 5 (demoting the old master to standby) does not run.
func (p *ExchangePool) failover(ctx context.Context, i int) {
	p.mu.Lock()
	if i >= len(p.masters) {
		p.mu.Unlock()
		return
	}
	failedMaster := p.masters[i]
	standbys := append([]*wsconn.Connection(nil), p.standbys...)
	p.mu.Unlock()

	bestIdx := selectBestStandby(standbys)
	if bestIdx == -1 {
		log.Warn().Str("venue", string(p.venue)).Int("master_index", i).Msg("no standby available, reconnecting failed master in place")
		failedMaster.MarkReconnectAttempt()
		failedMaster.Connect(ctx)
		return
	}
	promoted := standbys[bestIdx]

	masterSymbols := failedMaster.Symbols()

	if err := failedMaster.Unsubscribe(ctx); err != nil {
		log.Warn().Err(err).Str("connection_id", failedMaster.ID()).Msg("unsubscribe failed master errored, continuing")
	}
	failedMaster.SetSymbols(nil)

	if err := promoted.SwitchRole(ctx, wsconn.RoleMaster, masterSymbols); err != nil {
		log.Error().Err(err).Str("connection_id", promoted.ID()).Msg("promote standby failed, aborting and reconnecting failed master")
		failedMaster.SetSymbols(masterSymbols)
		failedMaster.MarkReconnectAttempt()
		failedMaster.Connect(ctx)
		return
	}

	p.mu.Lock()
	p.standbys = append(append([]*wsconn.Connection(nil), p.standbys[:bestIdx]...), p.standbys[bestIdx+1:]...)
	p.masters[i] = promoted
	p.mu.Unlock()

	oldMasterID := failedMaster.ID()
	newMasterID := promoted.ID()
	go func() {
		failedMaster.Disconnect()
		time.Sleep(p.timing.FailoverReconnectGap)
		failedMaster.MarkReconnectAttempt()
		if !failedMaster.Connect(ctx) {
			log.Error().Str("connection_id", failedMaster.ID()).Msg("old master reconnect after demotion failed, next tick retries")
			p.reportFailover(i, oldMasterID, newMasterID)
			return
		}
		heartbeat := p.cfg.HeartbeatSymbol
		if err := failedMaster.SwitchRole(ctx, wsconn.RoleWarmStandby, []string{heartbeat}); err != nil {
			log.Error().Err(err).Str("connection_id", failedMaster.ID()).Msg("demote old master to standby failed")
			p.reportFailover(i, oldMasterID, newMasterID)
			return
		}
		p.mu.Lock()
		p.standbys = append(p.standbys, failedMaster)
		p.mu.Unlock()
		p.reportFailover(i, oldMasterID, newMasterID)
	}()
}

// reportFailover emits step 6's failover record once step 5 (the old
// master's disconnect/reconnect/demote sequence) has actually finished,
// not when promotion merely begins.
func (p *ExchangePool) reportFailover(masterIndex int, oldID, newID string) {
	if p.metrics != nil {
		p.metrics.RecordFailover(string(p.venue))
	}
	if p.sink == nil {
		return
	}
	p.sink.ReportFailover(FailoverRecord{
		Venue:       p.venue,
		MasterIndex: masterIndex,
		OldID:       oldID,
		NewID:       newID,
		Instant:     time.Now(),
	})
}
