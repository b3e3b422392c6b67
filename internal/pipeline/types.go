// Package pipeline implements C5: the five-stage synchronous streaming
// normalization pipeline (S1 extract -> S2 fuse -> S3 align -> S4 per-venue
// compute -> S5 cross-venue compute), one mutex serializing ingest calls in
// arrival order, no internal queue.
package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

// MarketDataReader is the store's read surface. Defined here (not imported
// from the store package) so pipeline has no dependency on store; the store
// satisfies this interface structurally.
type MarketDataReader interface {
	GetMarketData(v venue.Name, symbol string, kind venue.EventKind) (wsconn.Envelope, bool)
}

// Extracted is S1's output: one per raw event.
type Extracted struct {
	EventTypeKey    string
	Venue           venue.Name
	CanonicalSymbol string
	Fields          map[string]interface{}
}

// Fused is S2's output: one record per (venue, canonical_symbol).
type Fused struct {
	Venue               venue.Name
	CanonicalSymbol     string
	ContractName        string
	LatestPrice         *decimal.Decimal
	FundingRate         *decimal.Decimal
	LastSettlementTS    *int64
	CurrentSettlementTS *int64
	NextSettlementTS    *int64
}

// Aligned is S3's output: one record per canonical symbol present on both
// venues.
type Aligned struct {
	CanonicalSymbol string
	OKX             Fused
	Binance         Fused

	OKXCurrentSettlement     *string
	OKXNextSettlement        *string
	BinanceCurrentSettlement *string
	BinanceLastSettlement    *string
}

// PerVenueComputed is S4's output: Aligned enriched with per-venue derived
// fields.
type PerVenueComputed struct {
	Aligned

	OKXRollingAvgPrice     *float64
	BinanceRollingAvgPrice *float64
	OKXSettlementInterval  *int64 // next - current, milliseconds
	BinanceFundingInterval *int64 // current - last, milliseconds
}

// FinalRecord is S5's output: the record delivered to the downstream
// consumer.
type FinalRecord struct {
	PerVenueComputed

	FundingRateDiff *decimal.Decimal // okx - binance
	PriceBasis      *decimal.Decimal // okx - binance
}

// Consumer receives one final record at a time. The pipeline awaits the
// callback and treats it as non-blocking from its own perspective.
type Consumer interface {
	OnFinalRecord(FinalRecord)
}
