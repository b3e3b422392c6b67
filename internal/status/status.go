// Package status implements C6: the periodic health-log tick that reads
// back what the pool has already written to the store and surfaces it as
// both a structured log line and Prometheus gauges.
package status

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shl888/feedcore/internal/config"
	"github.com/shl888/feedcore/internal/metrics"
	"github.com/shl888/feedcore/internal/pool"
	"github.com/shl888/feedcore/internal/venue"
)

// Source is the store's read surface for connection status. Defined here
// so status depends only on the narrow interface it needs, not on the
// store package itself.
type Source interface {
	GetConnectionStatus(v venue.Name) (pool.Snapshot, []pool.FailoverRecord)
}

// Reporter runs the 30s health-log tick described in the concurrency
// model: it never writes to the store itself (the pool does that every
// monitor tick), it only reads back the latest snapshot and reports it.
type Reporter struct {
	source  Source
	metrics *metrics.Registry
	venues  []venue.Name
	timing  config.Timing
}

// New builds a Reporter over the given venues.
func New(source Source, m *metrics.Registry, venues []venue.Name, timing config.Timing) *Reporter {
	return &Reporter{source: source, metrics: m, venues: venues, timing: timing}
}

// Run blocks, ticking at timing.HealthLogTick until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.timing.HealthLogTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Reporter) tick() {
	for _, v := range r.venues {
		snap, history := r.source.GetConnectionStatus(v)

		log.Info().
			Str("venue", string(v)).
			Str("pool_mode", snap.PoolMode).
			Int("masters", len(snap.Masters)).
			Int("warm_standbys", len(snap.WarmStandbys)).
			Bool("monitor_connected", snap.Monitor.Connected).
			Int("failovers_total", len(history)).
			Msg("websocket pool health")

		if r.metrics == nil {
			continue
		}
		connectedMasters := 0
		for _, h := range snap.Masters {
			if h.Connected {
				connectedMasters++
			}
		}
		connectedStandbys := 0
		for _, h := range snap.WarmStandbys {
			if h.Connected {
				connectedStandbys++
			}
		}
		r.metrics.SetConnectionsActive(string(v), "master", float64(connectedMasters))
		r.metrics.SetConnectionsActive(string(v), "warm_standby", float64(connectedStandbys))
		monitorConnected := 0.0
		if snap.Monitor.Connected {
			monitorConnected = 1
		}
		r.metrics.SetConnectionsActive(string(v), "monitor", monitorConnected)
	}
}
