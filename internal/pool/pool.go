// Package pool implements C2 (Exchange Pool): the per-venue fleet of
// masters, warm standbys, and one monitor connection, including the
// monitor-scheduling loop that executes failovers.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shl888/feedcore/internal/breaker"
	"github.com/shl888/feedcore/internal/config"
	"github.com/shl888/feedcore/internal/metrics"
	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

// Snapshot is the health sample the pool writes to its StatusSink (the
// store) every monitor tick; C6 reads it back from there.
type Snapshot struct {
	Venue        venue.Name
	Instant      time.Time
	Masters      []wsconn.Health
	WarmStandbys []wsconn.Health
	Monitor      wsconn.Health
	PoolMode     string
}

// FailoverRecord is emitted to the status sink at the end of a failover.
type FailoverRecord struct {
	Venue       venue.Name
	MasterIndex int
	OldID       string
	NewID       string
	Instant     time.Time
}

// StatusSink receives C2's periodic snapshots and failover records. The
// store implements this; the pool depends only on the interface.
type StatusSink interface {
	ReportSnapshot(Snapshot)
	ReportFailover(FailoverRecord)
}

// ExchangePool owns M masters, W warm standbys, and one monitor connection
// for a single venue, and performs failover.
type ExchangePool struct {
	venue   venue.Name
	url     string
	timing  config.Timing
	sink    StatusSink
	emit    wsconn.EmitFunc
	cfg     config.VenueConfig
	mbrk    *breaker.MonitorBreaker
	metrics *metrics.Registry

	mu       sync.Mutex
	masters  []*wsconn.Connection
	standbys []*wsconn.Connection
	monitor  *wsconn.Connection

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// New constructs an ExchangePool; it does not start any connection. m may be
// nil, in which case no Prometheus collectors are touched.
func New(cfg config.VenueConfig, timing config.Timing, emit wsconn.EmitFunc, sink StatusSink, m *metrics.Registry) *ExchangePool {
	return &ExchangePool{
		venue:   cfg.Name,
		url:     cfg.WSPublicURL,
		timing:  timing,
		sink:    sink,
		emit:    emit,
		cfg:     cfg,
		mbrk:    breaker.NewMonitorBreaker(string(cfg.Name) + "_monitor"),
		metrics: m,
	}
}

// Initialize partitions symbols, concurrently starts masters, standbys, and
// the monitor (each with its own timeout, partial success acceptable), then
// runs the mandatory post-check and starts the monitor-scheduling loop.
func (p *ExchangePool) Initialize(ctx context.Context, symbols []string) error {
	groups := venue.Partition(symbols, p.cfg.Masters, p.cfg.SymbolsPerMaster)

	p.mu.Lock()
	p.masters = make([]*wsconn.Connection, len(groups))
	for i, g := range groups {
		id := fmt.Sprintf("%s_master_%d", p.venue, i)
		c := wsconn.New(id, p.venue, p.url, wsconn.RoleMaster, i, p.timing, p.emit, p.metrics)
		c.SetSymbols(g)
		p.masters[i] = c
	}

	p.standbys = make([]*wsconn.Connection, p.cfg.WarmStandbys)
	for i := 0; i < p.cfg.WarmStandbys; i++ {
		id := fmt.Sprintf("%s_warm_%d", p.venue, i)
		c := wsconn.New(id, p.venue, p.url, wsconn.RoleWarmStandby, i, p.timing, p.emit, p.metrics)
		c.SetSymbols([]string{p.cfg.HeartbeatSymbol})
		p.standbys[i] = c
	}

	var monitor *wsconn.Connection
	if p.cfg.MonitorEnabled {
		id := fmt.Sprintf("%s_monitor", p.venue)
		monitor = wsconn.New(id, p.venue, p.url, wsconn.RoleMonitor, 0, p.timing, p.emit, p.metrics)
		p.monitor = monitor
	}
	masters := append([]*wsconn.Connection(nil), p.masters...)
	standbys := append([]*wsconn.Connection(nil), p.standbys...)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range masters {
		wg.Add(1)
		go func(c *wsconn.Connection) {
			defer wg.Done()
			if !c.Connect(ctx) {
				log.Warn().Str("connection_id", c.ID()).Msg("master initial connect failed, monitor will retry")
			}
		}(c)
	}
	for _, c := range standbys {
		wg.Add(1)
		go func(c *wsconn.Connection) {
			defer wg.Done()
			if !c.Connect(ctx) {
				log.Warn().Str("connection_id", c.ID()).Msg("standby initial connect failed, monitor will retry")
			}
		}(c)
	}
	if monitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !monitor.Connect(ctx) {
				log.Warn().Str("connection_id", monitor.ID()).Msg("monitor initial connect failed")
			}
		}()
	}
	wg.Wait()

	p.postCheck(ctx)
	return nil
}

// postCheck is mandatory: without it the pool can silently lose its
// failover authority. If the monitor is down, retry with back-off; if the
// monitor-scheduling task is absent or finished, recreate it.
func (p *ExchangePool) postCheck(ctx context.Context) {
	p.mu.Lock()
	monitor := p.monitor
	p.mu.Unlock()

	if monitor != nil && !monitor.Health().Connected {
		if err := p.mbrk.RetryConnect(ctx, p.timing, monitor.Connect); err != nil {
			log.Error().Err(err).Str("venue", string(p.venue)).Msg("monitor connect retries exhausted")
		}
	}

	p.mu.Lock()
	alive := p.monitorDone != nil
	select {
	case <-nonNilOrClosed(p.monitorDone):
		alive = false
	default:
	}
	p.mu.Unlock()

	if !alive {
		p.startMonitorLoop()
	}
}

func nonNilOrClosed(ch chan struct{}) chan struct{} {
	if ch == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return ch
}

func (p *ExchangePool) startMonitorLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.monitorCancel = cancel
	p.monitorDone = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.timing.MonitorTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

func (p *ExchangePool) tick(ctx context.Context) {
	p.mu.Lock()
	masters := append([]*wsconn.Connection(nil), p.masters...)
	standbys := append([]*wsconn.Connection(nil), p.standbys...)
	monitor := p.monitor
	p.mu.Unlock()

	for i, m := range masters {
		if !m.Health().Connected {
			p.failover(ctx, i)
		}
	}
	for _, s := range standbys {
		if !s.Health().Connected {
			go func(c *wsconn.Connection) {
				c.MarkReconnectAttempt()
				c.Connect(ctx)
			}(s)
		}
	}

	if p.sink != nil {
		p.sink.ReportSnapshot(p.snapshot(masters, standbys, monitor))
	}
}

func (p *ExchangePool) snapshot(masters, standbys []*wsconn.Connection, monitor *wsconn.Connection) Snapshot {
	snap := Snapshot{
		Venue:    p.venue,
		Instant:  time.Now(),
		PoolMode: "active",
	}
	for _, m := range masters {
		snap.Masters = append(snap.Masters, m.Health())
	}
	for _, s := range standbys {
		snap.WarmStandbys = append(snap.WarmStandbys, s.Health())
	}
	if monitor != nil {
		snap.Monitor = monitor.Health()
	}
	return snap
}

// Shutdown cancels the monitor task and disconnects every connection in
// parallel.
func (p *ExchangePool) Shutdown() {
	p.mu.Lock()
	if p.monitorCancel != nil {
		p.monitorCancel()
	}
	all := append(append([]*wsconn.Connection(nil), p.masters...), p.standbys...)
	if p.monitor != nil {
		all = append(all, p.monitor)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range all {
		wg.Add(1)
		go func(c *wsconn.Connection) {
			defer wg.Done()
			c.Disconnect()
		}(c)
	}
	wg.Wait()
}

// MonitorLoopAlive reports whether the monitor-scheduling goroutine is
// running; C3's post-check reads this to decide whether to recreate it.
func (p *ExchangePool) MonitorLoopAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.monitorDone == nil {
		return false
	}
	select {
	case <-p.monitorDone:
		return false
	default:
		return true
	}
}

// EnsureMonitorLoop recreates the monitor-scheduling loop if it is not
// alive. C3 calls this in its own post-check, duplicating C2's by design.
func (p *ExchangePool) EnsureMonitorLoop() {
	if !p.MonitorLoopAlive() {
		p.startMonitorLoop()
	}
}

// Masters returns a snapshot of the current master connections, for tests
// and the status reporter.
func (p *ExchangePool) Masters() []*wsconn.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*wsconn.Connection(nil), p.masters...)
}

// Standbys returns a snapshot of the current warm-standby connections.
func (p *ExchangePool) Standbys() []*wsconn.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*wsconn.Connection(nil), p.standbys...)
}

// Monitor returns the monitor connection, or nil if disabled.
func (p *ExchangePool) Monitor() *wsconn.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.monitor
}
