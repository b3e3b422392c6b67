package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl888/feedcore/internal/pool"
	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

type fakeIngester struct {
	mu       sync.Mutex
	received []wsconn.Envelope
}

func (f *fakeIngester) Ingest(e wsconn.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, e)
}

func (f *fakeIngester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestStore_UpdateMarketData_ForwardsToPipeline(t *testing.T) {
	ing := &fakeIngester{}
	s := New([]venue.Name{venue.Binance}, ing)

	env := wsconn.Envelope{Venue: venue.Binance, CanonicalSymbol: "BTCUSDT", EventKind: venue.EventTicker, IngestInstant: time.Now()}
	require.NoError(t, s.UpdateMarketData(env))

	assert.Equal(t, 1, ing.count())

	got, ok := s.GetMarketData(venue.Binance, "BTCUSDT", venue.EventTicker)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", got.CanonicalSymbol)
}

func TestStore_UpdateMarketData_UnconfiguredVenueErrors(t *testing.T) {
	s := New([]venue.Name{venue.Binance}, &fakeIngester{})
	err := s.UpdateMarketData(wsconn.Envelope{Venue: venue.OKX, CanonicalSymbol: "BTCUSDT"})
	assert.Error(t, err)
}

func TestStore_GetLatestTracksMostRecentKind(t *testing.T) {
	s := New([]venue.Name{venue.Binance}, &fakeIngester{})
	require.NoError(t, s.UpdateMarketData(wsconn.Envelope{Venue: venue.Binance, CanonicalSymbol: "BTCUSDT", EventKind: venue.EventTicker}))
	require.NoError(t, s.UpdateMarketData(wsconn.Envelope{Venue: venue.Binance, CanonicalSymbol: "BTCUSDT", EventKind: venue.EventMarkPrice}))

	latest, ok := s.GetLatest(venue.Binance, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, venue.EventMarkPrice, latest.EventKind)
}

func TestStore_IngestSettlement(t *testing.T) {
	ing := &fakeIngester{}
	s := New([]venue.Name{venue.Binance}, ing)

	require.NoError(t, s.IngestSettlement(venue.Binance, "BTCUSDT", 1700000000000, map[string]interface{}{"s": "BTCUSDT"}))
	assert.Equal(t, 1, ing.count())

	env, ok := s.GetMarketData(venue.Binance, "BTCUSDT", venue.EventFundingSettlement)
	require.True(t, ok)
	assert.Equal(t, venue.EventFundingSettlement, env.EventKind)
	assert.Equal(t, int64(1700000000000), env.Raw["funding_time"])
}

func TestStore_IngestSettlement_NilRaw(t *testing.T) {
	s := New([]venue.Name{venue.Binance}, &fakeIngester{})

	require.NoError(t, s.IngestSettlement(venue.Binance, "ETHUSDT", 1700000005000, nil))

	env, ok := s.GetMarketData(venue.Binance, "ETHUSDT", venue.EventFundingSettlement)
	require.True(t, ok)
	assert.Equal(t, int64(1700000005000), env.Raw["funding_time"])
}

func TestStore_StatusSinkRoundTrip(t *testing.T) {
	s := New([]venue.Name{venue.Binance}, &fakeIngester{})

	s.ReportSnapshot(pool.Snapshot{Venue: venue.Binance, PoolMode: "active"})
	s.ReportFailover(pool.FailoverRecord{Venue: venue.Binance, MasterIndex: 0, OldID: "a", NewID: "b"})

	snap, history := s.GetConnectionStatus(venue.Binance)
	assert.Equal(t, "active", snap.PoolMode)
	require.Len(t, history, 1)
	assert.Equal(t, "b", history[0].NewID)
}
