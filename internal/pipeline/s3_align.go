package pipeline

import (
	"github.com/shl888/feedcore/internal/config"
	"github.com/shl888/feedcore/internal/venue"
)

// align produces a cross-venue record for symbol only when both venues
// currently have a fuseable record for it. It re-derives the sibling
// venue's Fused record on every call rather than remembering it, so there
// is no state carried between invocations.
func align(reader MarketDataReader, symbol string) (Aligned, bool) {
	okx, ok := fuse(reader, venue.OKX, symbol)
	if !ok {
		return Aligned{}, false
	}
	binance, ok := fuse(reader, venue.Binance, symbol)
	if !ok {
		return Aligned{}, false
	}

	return Aligned{
		CanonicalSymbol:          symbol,
		OKX:                      okx,
		Binance:                  binance,
		OKXCurrentSettlement:     config.FormatSettlementMillis(okx.CurrentSettlementTS),
		OKXNextSettlement:        config.FormatSettlementMillis(okx.NextSettlementTS),
		BinanceCurrentSettlement: config.FormatSettlementMillis(binance.CurrentSettlementTS),
		BinanceLastSettlement:    config.FormatSettlementMillis(binance.LastSettlementTS),
	}, true
}
