// Package venue holds the cross-venue symbol model shared by the
// connection, pool and pipeline packages.
package venue

import "strings"

// Name identifies one of the two perpetual-futures venues the pool
// maintains connections to.
type Name string

const (
	// OKX is venue A: instId-based channels, "-SWAP" contract suffix.
	OKX Name = "okx"
	// Binance is venue B: combined-stream symbols, canonical form.
	Binance Name = "binance"
)

// EventKind classifies a normalized event emitted by a Connection.
type EventKind string

const (
	EventTicker             EventKind = "ticker"
	EventMarkPrice          EventKind = "mark_price"
	EventFundingRate        EventKind = "funding_rate"
	EventFundingSettlement  EventKind = "funding_settlement"
)

// Canonicalize converts a venue-specific contract identifier into the
// cross-venue canonical form (venue B's own symbol shape).
//
// Binance symbols are already canonical. OKX symbols carry a "-SWAP"
// suffix and dashes between base/quote, e.g. "BTC-USDT-SWAP" -> "BTCUSDT".
func Canonicalize(v Name, raw string) string {
	if v != OKX {
		return raw
	}
	s := strings.ToUpper(raw)
	s = strings.TrimSuffix(s, "-SWAP")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// HeartbeatSymbol returns the single-symbol subscription a warm standby
// uses to stay hot without consuming a full master's quota.
func HeartbeatSymbol(v Name) string {
	switch v {
	case OKX:
		return "BTC-USDT-SWAP"
	case Binance:
		return "BTCUSDT"
	default:
		return ""
	}
}
