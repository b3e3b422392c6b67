package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/shl888/feedcore/internal/cache"
	"github.com/shl888/feedcore/internal/metrics"
	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

// Counters tracks how far ingest calls make it through the pipeline. Read
// with Snapshot; every field is updated with atomic adds from Ingest (which
// holds the pipeline mutex), so Snapshot can read them without that mutex.
type Counters struct {
	Ingested  int64
	Extracted int64
	Fused     int64
	Aligned   int64
	Computed  int64
	Emitted   int64
	Errors    int64
}

// Snapshot returns a point-in-time copy of the counters.
func (c *Counters) Snapshot() Counters {
	return Counters{
		Ingested:  atomic.LoadInt64(&c.Ingested),
		Extracted: atomic.LoadInt64(&c.Extracted),
		Fused:     atomic.LoadInt64(&c.Fused),
		Aligned:   atomic.LoadInt64(&c.Aligned),
		Computed:  atomic.LoadInt64(&c.Computed),
		Emitted:   atomic.LoadInt64(&c.Emitted),
		Errors:    atomic.LoadInt64(&c.Errors),
	}
}

// Pipeline is the five-stage synchronous normalization pipeline. One mutex
// serializes every Ingest call in arrival order; there is no internal
// queue and no buffering. Any stage that comes back empty aborts the call
// silently -- that's an expected outcome (e.g. only one venue has data so
// far), not an error.
type Pipeline struct {
	mu       sync.Mutex
	reader   MarketDataReader
	consumer Consumer
	metrics  *metrics.Registry

	okxCache     *cache.VenueCache
	binanceCache *cache.VenueCache

	counters Counters
}

// New builds a Pipeline reading sibling event-kind records from reader and
// delivering finished records to consumer. cacheSize bounds each venue's
// S4 symbol cache. m may be nil, in which case no Prometheus collectors are
// touched.
func New(reader MarketDataReader, consumer Consumer, cacheSize int, m *metrics.Registry) *Pipeline {
	return &Pipeline{
		reader:       reader,
		consumer:     consumer,
		metrics:      m,
		okxCache:     cache.New(cacheSize),
		binanceCache: cache.New(cacheSize),
	}
}

// Counters returns the pipeline's running stage counters.
func (p *Pipeline) Counters() Counters {
	return p.counters.Snapshot()
}

// Ingest runs one raw event through S1-S5. It is safe to call
// concurrently; calls are serialized by the pipeline's mutex so S2/S3's
// reads of the store always see a consistent view of sibling event kinds.
func (p *Pipeline) Ingest(env wsconn.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var timer *metrics.StageTimer
	if p.metrics != nil {
		timer = p.metrics.StartStageTimer()
	}
	stage := "ingested"
	defer func() {
		if timer != nil {
			timer.Stop(stage)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.counters.Errors, 1)
			if p.metrics != nil {
				p.metrics.RecordPipelineError()
			}
			log.Error().
				Interface("panic", r).
				Str("venue", string(env.Venue)).
				Str("symbol", env.CanonicalSymbol).
				Msg("pipeline ingest recovered from panic")
		}
	}()

	atomic.AddInt64(&p.counters.Ingested, 1)
	if p.metrics != nil {
		p.metrics.RecordPipelineStage(stage)
	}

	if _, ok := extract(env); !ok {
		return
	}
	atomic.AddInt64(&p.counters.Extracted, 1)
	stage = "extracted"
	if p.metrics != nil {
		p.metrics.RecordPipelineStage(stage)
	}

	if _, ok := fuse(p.reader, env.Venue, env.CanonicalSymbol); !ok {
		return
	}
	atomic.AddInt64(&p.counters.Fused, 1)
	stage = "fused"
	if p.metrics != nil {
		p.metrics.RecordPipelineStage(stage)
	}

	aligned, ok := align(p.reader, env.CanonicalSymbol)
	if !ok {
		return
	}
	atomic.AddInt64(&p.counters.Aligned, 1)
	stage = "aligned"
	if p.metrics != nil {
		p.metrics.RecordPipelineStage(stage)
	}

	computed := computePerVenue(aligned, p.okxCache, p.binanceCache)
	atomic.AddInt64(&p.counters.Computed, 1)
	stage = "computed"
	if p.metrics != nil {
		p.metrics.RecordPipelineStage(stage)
		p.metrics.SetCacheSize(string(venue.OKX), float64(p.okxCache.Len()))
		p.metrics.SetCacheSize(string(venue.Binance), float64(p.binanceCache.Len()))
	}

	final := computeCrossVenue(computed)
	atomic.AddInt64(&p.counters.Emitted, 1)
	stage = "emitted"
	if p.metrics != nil {
		p.metrics.RecordPipelineStage(stage)
	}

	p.consumer.OnFinalRecord(final)
}

// PruneCaches drops cached symbols no longer present in the pool's active
// subscription set for either venue.
func (p *Pipeline) PruneCaches(okxActive, binanceActive map[string]struct{}) {
	p.okxCache.Prune(okxActive)
	p.binanceCache.Prune(binanceActive)
}
