package pool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl888/feedcore/internal/config"
	"github.com/shl888/feedcore/internal/metrics"
	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// mockVenueServer accepts any number of concurrent WS connections, holding
// each open until the test closes the server. It never pushes data, so
// these tests exercise the pool's role/failover bookkeeping, not parsing.
func mockVenueServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		<-r.Context().Done()
	})
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func wsURL(s *httptest.Server) string {
	return strings.Replace(s.URL, "http://", "ws://", 1) + "/ws"
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots []Snapshot
	failovers []FailoverRecord
}

func (r *recordingSink) ReportSnapshot(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recordingSink) ReportFailover(f FailoverRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failovers = append(r.failovers, f)
}

func (r *recordingSink) failoverCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failovers)
}

func testTiming() config.Timing {
	tm := config.DefaultTiming()
	tm.ConnectTimeout = 2 * time.Second
	tm.SubscribeBatchSleep = 2 * time.Millisecond
	tm.StandbyBaseDelay = 5 * time.Millisecond
	tm.StandbyPerIndexDelay = 2 * time.Millisecond
	tm.MonitorTick = 30 * time.Millisecond
	tm.FailoverReconnectGap = 5 * time.Millisecond
	return tm
}

func newTestPool(t *testing.T, masters, standbys int) (*ExchangePool, *recordingSink, func()) {
	server := mockVenueServer(t)
	cfg := config.VenueConfig{
		Name:             venue.Binance,
		WSPublicURL:      wsURL(server),
		Masters:          masters,
		WarmStandbys:     standbys,
		SymbolsPerMaster: 10,
		MonitorEnabled:   true,
		HeartbeatSymbol:  "BTCUSDT",
	}
	sink := &recordingSink{}
	p := New(cfg, testTiming(), func(wsconn.Envelope) {}, sink, nil)
	return p, sink, func() { p.Shutdown() }
}

func TestPool_InitializePartitionsDisjointUnion(t *testing.T) {
	p, _, cleanup := newTestPool(t, 3, 2)
	defer cleanup()

	symbols := make([]string, 25)
	for i := range symbols {
		symbols[i] = string(rune('A' + i))
	}
	require.NoError(t, p.Initialize(context.Background(), symbols))

	seen := map[string]int{}
	for _, m := range p.Masters() {
		for _, s := range m.Symbols() {
			seen[s]++
		}
	}
	assert.Len(t, seen, len(symbols))
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestPool_ZeroSymbolsZeroMasters(t *testing.T) {
	p, _, cleanup := newTestPool(t, 3, 2)
	defer cleanup()

	require.NoError(t, p.Initialize(context.Background(), nil))
	assert.Empty(t, p.Masters())
	assert.True(t, p.MonitorLoopAlive())
}

func TestPool_PostCheckStartsMonitorLoop(t *testing.T) {
	p, _, cleanup := newTestPool(t, 1, 1)
	defer cleanup()

	require.NoError(t, p.Initialize(context.Background(), []string{"BTCUSDT"}))
	assert.True(t, p.MonitorLoopAlive())
}

func TestPool_SumInvariantAcrossFailover(t *testing.T) {
	p, sink, cleanup := newTestPool(t, 2, 2)
	defer cleanup()

	require.NoError(t, p.Initialize(context.Background(), []string{"A", "B", "C", "D"}))
	before := len(p.Masters()) + len(p.Standbys())

	// Kill master 0's socket to force a failover on the next tick.
	p.Masters()[0].Disconnect()

	require.Eventually(t, func() bool { return sink.failoverCount() >= 1 }, 2*time.Second, 10*time.Millisecond)

	after := len(p.Masters()) + len(p.Standbys())
	assert.Equal(t, before, after)
	assert.Equal(t, 2, len(p.Masters()))
}

func TestPool_FailoverRecordsMetric(t *testing.T) {
	server := mockVenueServer(t)
	cfg := config.VenueConfig{
		Name:             venue.Binance,
		WSPublicURL:      wsURL(server),
		Masters:          2,
		WarmStandbys:     2,
		SymbolsPerMaster: 10,
		MonitorEnabled:   true,
		HeartbeatSymbol:  "BTCUSDT",
	}
	reg := metrics.New(prometheus.NewRegistry())
	p := New(cfg, testTiming(), func(wsconn.Envelope) {}, &recordingSink{}, reg)
	defer p.Shutdown()

	require.NoError(t, p.Initialize(context.Background(), []string{"A", "B", "C", "D"}))
	p.Masters()[0].Disconnect()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(reg.FailoversTotal.WithLabelValues(string(venue.Binance))) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPool_NoStandbyAvailableReconnectsInPlace(t *testing.T) {
	p, sink, cleanup := newTestPool(t, 2, 0)
	defer cleanup()

	require.NoError(t, p.Initialize(context.Background(), []string{"A", "B"}))
	p.Masters()[0].Disconnect()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, sink.failoverCount(), "no standby available means no promotion")
	assert.Equal(t, 2, len(p.Masters()))
}

func TestSelectBestStandby_NoneQualify(t *testing.T) {
	idx := selectBestStandby(nil)
	assert.Equal(t, -1, idx)
}
