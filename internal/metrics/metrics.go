// Package metrics holds feedcore's Prometheus instrumentation: connection
// health, failover counts, pipeline stage throughput and websocket traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Registry holds every Prometheus collector feedcore exposes. Unlike a
// package-level singleton bound to the default registerer, New takes a
// prometheus.Registerer explicitly so tests can register against a scratch
// registry instead of colliding with other tests' collectors.
type Registry struct {
	ConnectionsActive *prometheus.GaugeVec
	FailoversTotal    *prometheus.CounterVec

	PipelineStageTotal   *prometheus.CounterVec
	PipelineErrorsTotal  prometheus.Counter
	PipelineStageLatency *prometheus.HistogramVec

	WSMessagesTotal *prometheus.CounterVec
	WSParseErrors   *prometheus.CounterVec

	CacheSize *prometheus.GaugeVec
}

// New builds a Registry and registers every collector with reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ConnectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "feedcore_connections_active",
				Help: "Number of connections currently in the connected state, by venue and role",
			},
			[]string{"venue", "role"},
		),
		FailoversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcore_failovers_total",
				Help: "Total number of master failovers performed, by venue",
			},
			[]string{"venue"},
		),
		PipelineStageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcore_pipeline_stage_total",
				Help: "Total number of pipeline invocations that reached each stage",
			},
			[]string{"stage"},
		),
		PipelineErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feedcore_pipeline_errors_total",
				Help: "Total number of panics recovered at the pipeline boundary",
			},
		),
		PipelineStageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedcore_pipeline_stage_duration_seconds",
				Help:    "Duration of a full Ingest call",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		WSMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcore_ws_messages_total",
				Help: "Total number of normalized websocket messages received, by venue and event kind",
			},
			[]string{"venue", "event_kind"},
		),
		WSParseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedcore_ws_parse_errors_total",
				Help: "Total number of websocket frames that failed to parse, by venue",
			},
			[]string{"venue"},
		),
		CacheSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "feedcore_venue_cache_size",
				Help: "Number of symbols currently cached for S4 per-venue computation",
			},
			[]string{"venue"},
		),
	}

	reg.MustRegister(
		r.ConnectionsActive,
		r.FailoversTotal,
		r.PipelineStageTotal,
		r.PipelineErrorsTotal,
		r.PipelineStageLatency,
		r.WSMessagesTotal,
		r.WSParseErrors,
		r.CacheSize,
	)

	return r
}

// StageTimer times one Ingest call end-to-end.
type StageTimer struct {
	registry *Registry
	start    time.Time
}

// StartStageTimer begins timing a pipeline invocation.
func (r *Registry) StartStageTimer() *StageTimer {
	return &StageTimer{registry: r, start: time.Now()}
}

// Stop records the elapsed duration under the given terminal stage name
// (the last stage the invocation reached before aborting or completing).
func (t *StageTimer) Stop(stage string) {
	t.registry.PipelineStageLatency.WithLabelValues(stage).Observe(time.Since(t.start).Seconds())
}

// RecordPipelineStage increments the per-stage invocation counter for one
// stage an Ingest call reached.
func (r *Registry) RecordPipelineStage(stage string) {
	r.PipelineStageTotal.WithLabelValues(stage).Inc()
}

// RecordPipelineError increments the count of panics recovered at the
// pipeline boundary.
func (r *Registry) RecordPipelineError() {
	r.PipelineErrorsTotal.Inc()
}

// RecordFailover increments the failover counter for a venue.
func (r *Registry) RecordFailover(venue string) {
	r.FailoversTotal.WithLabelValues(venue).Inc()
	log.Info().Str("venue", venue).Msg("failover recorded")
}

// RecordWSMessage increments the per-venue, per-event-kind message counter.
func (r *Registry) RecordWSMessage(venue, eventKind string) {
	r.WSMessagesTotal.WithLabelValues(venue, eventKind).Inc()
}

// RecordWSParseError increments the per-venue parse-error counter.
func (r *Registry) RecordWSParseError(venue string) {
	r.WSParseErrors.WithLabelValues(venue).Inc()
}

// SetConnectionsActive sets the active-connection gauge for a (venue, role)
// pair to an absolute count.
func (r *Registry) SetConnectionsActive(venue, role string, count float64) {
	r.ConnectionsActive.WithLabelValues(venue, role).Set(count)
}

// SetCacheSize sets the per-venue cache size gauge.
func (r *Registry) SetCacheSize(venue string, size float64) {
	r.CacheSize.WithLabelValues(venue).Set(size)
}
