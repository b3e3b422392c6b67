package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl888/feedcore/internal/config"
	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

func TestManager_StartAndShutdown(t *testing.T) {
	server := mockVenueServer(t)
	_ = server

	catalog := config.Catalog{Venues: []config.VenueConfig{
		{Name: venue.OKX, WSPublicURL: wsURL(server), Masters: 1, WarmStandbys: 1, SymbolsPerMaster: 10, MonitorEnabled: true, HeartbeatSymbol: "BTC-USDT-SWAP"},
		{Name: venue.Binance, WSPublicURL: wsURL(server), Masters: 1, WarmStandbys: 1, SymbolsPerMaster: 10, MonitorEnabled: true, HeartbeatSymbol: "BTCUSDT"},
	}}

	mgr := NewManager(catalog, testTiming(), func(wsconn.Envelope) {}, nil, nil)
	symbols := map[venue.Name][]string{
		venue.OKX:     {"BTC-USDT-SWAP"},
		venue.Binance: {"BTCUSDT"},
	}

	require.NoError(t, mgr.Start(context.Background(), symbols))

	okxPool := mgr.Pool(venue.OKX)
	require.NotNil(t, okxPool)
	assert.True(t, okxPool.MonitorLoopAlive())

	binPool := mgr.Pool(venue.Binance)
	require.NotNil(t, binPool)
	assert.True(t, binPool.MonitorLoopAlive())

	mgr.Shutdown()
}
