// Package store implements C4: the thread-safe market-data cache and the
// single entry point that fans ingested events out to the pipeline.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/shl888/feedcore/internal/pool"
	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

// Ingester is the pipeline's ingest entry point (C5). Store depends only on
// this narrow interface, not on the pipeline package.
type Ingester interface {
	Ingest(wsconn.Envelope)
}

type venueData struct {
	mu     sync.RWMutex
	byKind map[string]map[venue.EventKind]wsconn.Envelope
	latest map[string]venue.EventKind
}

// Store is the single mutable structure keyed venue -> symbol -> event_kind
// -> record; each venue has its own mutex.
type Store struct {
	venues   map[venue.Name]*venueData
	pipeline Ingester

	statusMu        sync.RWMutex
	poolStatus      map[venue.Name]pool.Snapshot
	failoverHistory map[venue.Name][]pool.FailoverRecord
}

// New constructs a Store for the given venues, wired to an ingester.
func New(venues []venue.Name, pipeline Ingester) *Store {
	s := &Store{
		venues:          make(map[venue.Name]*venueData, len(venues)),
		pipeline:        pipeline,
		poolStatus:      make(map[venue.Name]pool.Snapshot, len(venues)),
		failoverHistory: make(map[venue.Name][]pool.FailoverRecord, len(venues)),
	}
	for _, v := range venues {
		s.venues[v] = &venueData{
			byKind: make(map[string]map[venue.EventKind]wsconn.Envelope),
			latest: make(map[string]venue.EventKind),
		}
	}
	return s
}

// SetPipeline wires the ingester after construction, for callers that need
// to build the store before the pipeline that reads it exists yet.
func (s *Store) SetPipeline(pipeline Ingester) {
	s.pipeline = pipeline
}

func (s *Store) venueData(v venue.Name) (*venueData, error) {
	vd, ok := s.venues[v]
	if !ok {
		return nil, fmt.Errorf("store: unconfigured venue %q", v)
	}
	return vd, nil
}

// UpdateMarketData stores the record, updates the symbol's latest pointer,
// then invokes the pipeline's Ingest outside the venue mutex so pipeline
// work never blocks further ingress.
func (s *Store) UpdateMarketData(env wsconn.Envelope) error {
	vd, err := s.venueData(env.Venue)
	if err != nil {
		return err
	}

	vd.mu.Lock()
	symKinds, ok := vd.byKind[env.CanonicalSymbol]
	if !ok {
		symKinds = make(map[venue.EventKind]wsconn.Envelope)
		vd.byKind[env.CanonicalSymbol] = symKinds
	}
	symKinds[env.EventKind] = env
	vd.latest[env.CanonicalSymbol] = env.EventKind
	vd.mu.Unlock()

	if s.pipeline != nil {
		s.pipeline.Ingest(env)
	}
	return nil
}

// IngestSettlement feeds a funding-settlement record (the REST poller's
// output shape, per the funding-settlement feature) through the same path
// as a WebSocket event so S2's last_settlement_ts fill rule is exercised.
func (s *Store) IngestSettlement(v venue.Name, canonicalSymbol string, lastSettlementMillis int64, raw map[string]interface{}) error {
	if raw == nil {
		raw = make(map[string]interface{}, 1)
	}
	raw["funding_time"] = lastSettlementMillis

	env := wsconn.Envelope{
		Venue:           v,
		CanonicalSymbol: canonicalSymbol,
		EventKind:       venue.EventFundingSettlement,
		WireEventType:   "funding_settlement",
		Raw:             raw,
		IngestInstant:   time.Now(),
	}
	return s.UpdateMarketData(env)
}

// GetMarketData reads one (venue, symbol, event_kind) record.
func (s *Store) GetMarketData(v venue.Name, symbol string, kind venue.EventKind) (wsconn.Envelope, bool) {
	vd, err := s.venueData(v)
	if err != nil {
		return wsconn.Envelope{}, false
	}
	vd.mu.RLock()
	defer vd.mu.RUnlock()
	symKinds, ok := vd.byKind[symbol]
	if !ok {
		return wsconn.Envelope{}, false
	}
	env, ok := symKinds[kind]
	return env, ok
}

// GetLatest reads the most recently written event_kind's record for a
// symbol.
func (s *Store) GetLatest(v venue.Name, symbol string) (wsconn.Envelope, bool) {
	vd, err := s.venueData(v)
	if err != nil {
		return wsconn.Envelope{}, false
	}
	vd.mu.RLock()
	defer vd.mu.RUnlock()
	kind, ok := vd.latest[symbol]
	if !ok {
		return wsconn.Envelope{}, false
	}
	return vd.byKind[symbol][kind], true
}

// ReportSnapshot implements pool.StatusSink: writes the periodic health
// snapshot under key (venue, "websocket_pool").
func (s *Store) ReportSnapshot(snap pool.Snapshot) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.poolStatus[snap.Venue] = snap
}

// ReportFailover implements pool.StatusSink: appends under key
// (venue, "failover_history").
func (s *Store) ReportFailover(rec pool.FailoverRecord) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.failoverHistory[rec.Venue] = append(s.failoverHistory[rec.Venue], rec)
}

// GetConnectionStatus reads the latest pool snapshot and failover history
// for a venue.
func (s *Store) GetConnectionStatus(v venue.Name) (pool.Snapshot, []pool.FailoverRecord) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	history := append([]pool.FailoverRecord(nil), s.failoverHistory[v]...)
	return s.poolStatus[v], history
}
