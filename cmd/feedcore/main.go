package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shl888/feedcore/internal/config"
	"github.com/shl888/feedcore/internal/httpapi"
	"github.com/shl888/feedcore/internal/metrics"
	"github.com/shl888/feedcore/internal/pipeline"
	"github.com/shl888/feedcore/internal/pool"
	"github.com/shl888/feedcore/internal/status"
	"github.com/shl888/feedcore/internal/store"
	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

const appName = "feedcore"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Cross-venue perpetual-futures market-data aggregator",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the websocket pools, normalization pipeline and REST surface",
		RunE:  runServe,
	}
	serveCmd.Flags().String("catalog", "", "Path to a venue catalog YAML file (defaults to the built-in catalog)")
	serveCmd.Flags().Int("cache-size", 2048, "Per-venue S4 symbol cache size")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// recordConsumer is the downstream callback for finished cross-venue
// records. There is no further product surface defined for this service;
// it logs at debug level and lets Prometheus carry aggregate visibility.
type recordConsumer struct{}

func (c *recordConsumer) OnFinalRecord(r pipeline.FinalRecord) {
	log.Debug().
		Str("symbol", r.CanonicalSymbol).
		Interface("funding_rate_diff", r.FundingRateDiff).
		Interface("price_basis", r.PriceBasis).
		Msg("final record emitted")
}

func runServe(cmd *cobra.Command, args []string) error {
	catalogPath, _ := cmd.Flags().GetString("catalog")
	cacheSize, _ := cmd.Flags().GetInt("cache-size")

	env := config.LoadEnv()
	catalog, err := config.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}
	catalog = catalog.ApplyEnv(env)
	timing := config.DefaultTiming()

	venues := make([]venue.Name, 0, len(catalog.Venues))
	symbolsByVenue := make(map[venue.Name][]string, len(catalog.Venues))
	for _, v := range catalog.Venues {
		venues = append(venues, v.Name)
		symbolsByVenue[v.Name] = v.Symbols
	}

	metricsRegistry := metrics.New(prometheus.DefaultRegisterer)

	st := store.New(venues, nil)

	consumer := &recordConsumer{}
	pipe := pipeline.New(st, consumer, cacheSize, metricsRegistry)
	st.SetPipeline(pipe)

	emit := func(e wsconn.Envelope) {
		metricsRegistry.RecordWSMessage(string(e.Venue), string(e.EventKind))
		if err := st.UpdateMarketData(e); err != nil {
			log.Warn().Err(err).Str("venue", string(e.Venue)).Msg("update_market_data failed")
		}
	}

	manager := pool.NewManager(catalog, timing, emit, st, metricsRegistry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx, symbolsByVenue); err != nil {
		return err
	}

	reporter := status.New(st, metricsRegistry, venues, timing)
	go reporter.Run(ctx)

	okxCfg, binanceCfg := findVenue(catalog, venue.OKX), findVenue(catalog, venue.Binance)
	httpCfg := httpapi.DefaultConfig()
	if env.Port != "" {
		if p, err := parsePort(env.Port); err == nil {
			httpCfg.Port = p
		}
	}
	httpCfg.AccessPassword = env.AccessPassword
	httpCfg.HasOKXKeys = okxCfg.APIKey != ""
	httpCfg.HasBinanceKeys = binanceCfg.APIKey != ""

	server := httpapi.New(httpCfg, st, venues)
	serverErrs := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrs <- err
		}
	}()

	log.Info().Msg(appName + " started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErrs:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown error")
	}
	manager.Shutdown()

	return nil
}

func findVenue(catalog config.Catalog, v venue.Name) config.VenueConfig {
	for _, c := range catalog.Venues {
		if c.Name == v {
			return c
		}
	}
	return config.VenueConfig{}
}

func parsePort(s string) (int, error) {
	return strconv.Atoi(s)
}
