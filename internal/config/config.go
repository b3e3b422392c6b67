// Package config holds the venue catalog and timing constants read at
// composition-root startup. Configuration is read-only after process start.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shl888/feedcore/internal/venue"
)

// Timing carries every duration/attempt constant the pool and pipeline use.
// These are fixed by the venue rate-limit contract, not meant to be tuned
// per deployment, but kept together so tests can override them.
type Timing struct {
	ConnectTimeout       time.Duration
	HeartbeatInterval    time.Duration
	CloseTimeout         time.Duration
	MonitorTick          time.Duration
	HealthLogTick        time.Duration
	SubscribeBatchSize   int
	SubscribeBatchSleep  time.Duration
	StandbyBaseDelay     time.Duration
	StandbyPerIndexDelay time.Duration
	FailoverReconnectGap time.Duration
	MonitorRetryAttempts int
}

// DefaultTiming returns the constants fixed by spec §5.
func DefaultTiming() Timing {
	return Timing{
		ConnectTimeout:       30 * time.Second,
		HeartbeatInterval:    15 * time.Second,
		CloseTimeout:         1 * time.Second,
		MonitorTick:          3 * time.Second,
		HealthLogTick:        30 * time.Second,
		SubscribeBatchSize:   50,
		SubscribeBatchSleep:  1500 * time.Millisecond,
		StandbyBaseDelay:     10 * time.Second,
		StandbyPerIndexDelay: 5 * time.Second,
		FailoverReconnectGap: 1 * time.Second,
		MonitorRetryAttempts: 3,
	}
}

// StandbyDelay returns how long standby `index` waits after connect before
// it sends its heartbeat subscribe, per spec §4.1 (10 + 5*index seconds).
func (t Timing) StandbyDelay(index int) time.Duration {
	return t.StandbyBaseDelay + time.Duration(index)*t.StandbyPerIndexDelay
}

// MonitorRetryBackoff returns the exponential back-off for monitor-connection
// init retries: 2^attempt seconds, attempt starting at 0.
func (t Timing) MonitorRetryBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// VenueConfig is one venue's URL, credentials and pool shape.
type VenueConfig struct {
	Name              venue.Name `yaml:"name"`
	WSPublicURL       string     `yaml:"ws_public_url"`
	Masters           int        `yaml:"masters"`
	WarmStandbys      int        `yaml:"warm_standbys"`
	SymbolsPerMaster  int        `yaml:"symbols_per_master"`
	MonitorEnabled    bool       `yaml:"monitor_enabled"`
	HeartbeatSymbol   string     `yaml:"heartbeat_symbol"`
	Symbols           []string   `yaml:"symbols"`
	APIKey            string     `yaml:"-"`
	APISecret         string     `yaml:"-"`
	APIPassphrase     string     `yaml:"-"`
}

// Catalog is the top-level venue catalog file shape.
type Catalog struct {
	Venues []VenueConfig `yaml:"venues"`
}

// defaultSymbolUniverse is the small built-in symbol set used when no
// catalog file overrides it. Symbol discovery against either venue's REST
// listing API is out of scope; the universe is configured, not fetched.
var defaultSymbolUniverse = []string{
	"BTC-USDT-SWAP", "ETH-USDT-SWAP", "SOL-USDT-SWAP", "XRP-USDT-SWAP",
	"DOGE-USDT-SWAP", "ADA-USDT-SWAP", "AVAX-USDT-SWAP", "LINK-USDT-SWAP",
}

var defaultSymbolUniverseBinance = []string{
	"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT",
	"DOGEUSDT", "ADAUSDT", "AVAXUSDT", "LINKUSDT",
}

// DefaultCatalog returns the two built-in venues with heartbeat symbols
// matching original_source's hard-coded choice (spec §9 open question 3:
// kept fixed but exposed as an overridable field).
func DefaultCatalog() Catalog {
	return Catalog{
		Venues: []VenueConfig{
			{
				Name:             venue.OKX,
				WSPublicURL:      "wss://ws.okx.com:8443/ws/v5/public",
				Masters:          2,
				WarmStandbys:     2,
				SymbolsPerMaster: 300,
				MonitorEnabled:   true,
				HeartbeatSymbol:  venue.HeartbeatSymbol(venue.OKX),
				Symbols:          defaultSymbolUniverse,
			},
			{
				Name:             venue.Binance,
				WSPublicURL:      "wss://fstream.binance.com/stream",
				Masters:          2,
				WarmStandbys:     2,
				SymbolsPerMaster: 300,
				MonitorEnabled:   true,
				HeartbeatSymbol:  venue.HeartbeatSymbol(venue.Binance),
				Symbols:          defaultSymbolUniverseBinance,
			},
		},
	}
}

// LoadCatalog reads a venue catalog from a YAML file, falling back to
// DefaultCatalog when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read venue catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse venue catalog: %w", err)
	}
	return c, nil
}

// Env is the set of environment variables the composition root reads once
// at startup (spec §6 "Environment").
type Env struct {
	Port             string
	AppURL           string
	AccessPassword   string
	OKXAPIKey        string
	OKXAPISecret     string
	OKXPassphrase    string
	BinanceAPIKey    string
	BinanceAPISecret string
}

// LoadEnv reads the process environment. Missing values are left empty;
// the composition root decides what is fatal.
func LoadEnv() Env {
	return Env{
		Port:             os.Getenv("PORT"),
		AppURL:           os.Getenv("APP_URL"),
		AccessPassword:   os.Getenv("ACCESS_PASSWORD"),
		OKXAPIKey:        os.Getenv("OKX_API_KEY"),
		OKXAPISecret:     os.Getenv("OKX_API_SECRET"),
		OKXPassphrase:    os.Getenv("OKX_PASSPHRASE"),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
	}
}

// ApplyEnv copies per-venue credentials from env into the catalog.
func (c Catalog) ApplyEnv(env Env) Catalog {
	out := Catalog{Venues: make([]VenueConfig, len(c.Venues))}
	for i, v := range c.Venues {
		switch v.Name {
		case venue.OKX:
			v.APIKey, v.APISecret, v.APIPassphrase = env.OKXAPIKey, env.OKXAPISecret, env.OKXPassphrase
		case venue.Binance:
			v.APIKey, v.APISecret = env.BinanceAPIKey, env.BinanceAPISecret
		}
		out.Venues[i] = v
	}
	return out
}
