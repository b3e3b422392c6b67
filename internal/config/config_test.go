package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shl888/feedcore/internal/venue"
)

func TestTiming_StandbyDelay(t *testing.T) {
	tm := DefaultTiming()
	assert.Equal(t, 10*time.Second, tm.StandbyDelay(0))
	assert.Equal(t, 20*time.Second, tm.StandbyDelay(2))
}

func TestTiming_MonitorRetryBackoff(t *testing.T) {
	tm := DefaultTiming()
	assert.Equal(t, 1*time.Second, tm.MonitorRetryBackoff(0))
	assert.Equal(t, 2*time.Second, tm.MonitorRetryBackoff(1))
	assert.Equal(t, 4*time.Second, tm.MonitorRetryBackoff(2))
}

func TestDefaultCatalog_HeartbeatSymbols(t *testing.T) {
	cat := DefaultCatalog()
	for _, v := range cat.Venues {
		assert.Equal(t, venue.HeartbeatSymbol(v.Name), v.HeartbeatSymbol)
	}
}

func TestLoadCatalog_EmptyPathUsesDefault(t *testing.T) {
	cat, err := LoadCatalog("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), cat)
}

func TestCatalog_ApplyEnv(t *testing.T) {
	cat := DefaultCatalog()
	env := Env{
		OKXAPIKey:        "ok",
		OKXAPISecret:     "oks",
		OKXPassphrase:    "okp",
		BinanceAPIKey:    "bk",
		BinanceAPISecret: "bs",
	}
	applied := cat.ApplyEnv(env)
	for _, v := range applied.Venues {
		switch v.Name {
		case venue.OKX:
			assert.Equal(t, "ok", v.APIKey)
			assert.Equal(t, "oks", v.APISecret)
			assert.Equal(t, "okp", v.APIPassphrase)
		case venue.Binance:
			assert.Equal(t, "bk", v.APIKey)
			assert.Equal(t, "bs", v.APISecret)
		}
	}
}
