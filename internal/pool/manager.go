package pool

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/shl888/feedcore/internal/config"
	"github.com/shl888/feedcore/internal/metrics"
	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

// Manager is C3: owns one ExchangePool per configured venue and forwards
// lifecycle calls.
type Manager struct {
	pools map[venue.Name]*ExchangePool
}

// NewManager constructs one ExchangePool per venue in the catalog.
func NewManager(catalog config.Catalog, timing config.Timing, emit wsconn.EmitFunc, sink StatusSink, m *metrics.Registry) *Manager {
	mgr := &Manager{pools: make(map[venue.Name]*ExchangePool, len(catalog.Venues))}
	for _, v := range catalog.Venues {
		mgr.pools[v.Name] = New(v, timing, emit, sink, m)
	}
	return mgr
}

// Start initializes every pool with its symbol universe, logging each step
// explicitly, then re-verifies every pool's monitor-scheduling task is
// alive — this duplicates C2's own post-check by design, since the manager
// cannot assume a pool's Initialize succeeded end to end.
func (m *Manager) Start(ctx context.Context, symbolsByVenue map[venue.Name][]string) error {
	var wg sync.WaitGroup
	for name, p := range m.pools {
		name, p := name, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("venue", string(name)).Msg("initializing exchange pool")
			if err := p.Initialize(ctx, symbolsByVenue[name]); err != nil {
				log.Error().Err(err).Str("venue", string(name)).Msg("pool initialize returned error")
			}
			log.Info().Str("venue", string(name)).Msg("exchange pool initialized")
		}()
	}
	wg.Wait()

	for name, p := range m.pools {
		p.EnsureMonitorLoop()
		log.Info().Str("venue", string(name)).Bool("monitor_loop_alive", p.MonitorLoopAlive()).Msg("post-check complete")
	}
	return nil
}

// Shutdown tears down every pool in parallel.
func (m *Manager) Shutdown() {
	var wg sync.WaitGroup
	for _, p := range m.pools {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Shutdown()
		}()
	}
	wg.Wait()
}

// Pool returns the pool for a venue, or nil if unconfigured.
func (m *Manager) Pool(v venue.Name) *ExchangePool {
	return m.pools[v]
}
