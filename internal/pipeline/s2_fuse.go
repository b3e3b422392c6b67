package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/shl888/feedcore/internal/venue"
)

// toDecimal coerces a JSON-decoded wire value (string or float64) into a
// decimal.Decimal. Wire payloads send prices and rates as strings; numeric
// fallback covers payloads that don't.
func toDecimal(v interface{}) *decimal.Decimal {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return nil
		}
		return &d
	case float64:
		d := decimal.NewFromFloat(val)
		return &d
	default:
		return nil
	}
}

// toInt64 coerces a wire value (string, float64, or the int64 that
// store.IngestSettlement writes) into a millisecond epoch timestamp.
func toInt64(v interface{}) *int64 {
	switch val := v.(type) {
	case int64:
		i := val
		return &i
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return nil
		}
		i := d.IntPart()
		return &i
	case float64:
		i := int64(val)
		return &i
	default:
		return nil
	}
}

// fuse merges the currently-known event-kind records for one (venue,
// canonical symbol) pair into a single Fused record. It reads the store's
// live snapshot rather than anything pipeline-internal, so every call sees
// whatever the other event kinds last wrote -- there is no cross-invocation
// state inside the pipeline itself.
func fuse(reader MarketDataReader, v venue.Name, symbol string) (Fused, bool) {
	switch v {
	case venue.OKX:
		return fuseOKX(reader, symbol)
	case venue.Binance:
		return fuseBinance(reader, symbol)
	default:
		return Fused{}, false
	}
}

func fuseOKX(reader MarketDataReader, symbol string) (Fused, bool) {
	tickerEnv, tickerOK := reader.GetMarketData(venue.OKX, symbol, venue.EventTicker)
	frEnv, frOK := reader.GetMarketData(venue.OKX, symbol, venue.EventFundingRate)
	if !tickerOK && !frOK {
		return Fused{}, false
	}

	out := Fused{Venue: venue.OKX, CanonicalSymbol: symbol}

	if tickerOK {
		if ex, ok := extract(tickerEnv); ok {
			if cn, ok := ex.Fields["contract_name"].(string); ok {
				out.ContractName = cn
			}
			out.LatestPrice = toDecimal(ex.Fields["latest_price"])
		}
	}
	if frOK {
		if ex, ok := extract(frEnv); ok {
			if out.ContractName == "" {
				if cn, ok := ex.Fields["contract_name"].(string); ok {
					out.ContractName = cn
				}
			}
			out.FundingRate = toDecimal(ex.Fields["funding_rate"])
			out.CurrentSettlementTS = toInt64(ex.Fields["current_settlement_time"])
			out.NextSettlementTS = toInt64(ex.Fields["next_settlement_time"])
		}
	}

	// venue A (OKX) needs at least a price or a rate to be useful downstream.
	if out.LatestPrice == nil && out.FundingRate == nil {
		return Fused{}, false
	}
	return out, true
}

func fuseBinance(reader MarketDataReader, symbol string) (Fused, bool) {
	markEnv, markOK := reader.GetMarketData(venue.Binance, symbol, venue.EventMarkPrice)
	if !markOK {
		return Fused{}, false
	}
	markExtracted, ok := extract(markEnv)
	if !ok {
		return Fused{}, false
	}

	out := Fused{Venue: venue.Binance, CanonicalSymbol: symbol}
	if cn, ok := markExtracted.Fields["contract_name"].(string); ok {
		out.ContractName = cn
	}
	out.FundingRate = toDecimal(markExtracted.Fields["funding_rate"])
	out.CurrentSettlementTS = toInt64(markExtracted.Fields["current_settlement_time"])

	// venue B (Binance) funding_rate must never be null; mark-price is
	// required precisely so this always holds.
	if out.FundingRate == nil {
		return Fused{}, false
	}

	if tickerEnv, ok := reader.GetMarketData(venue.Binance, symbol, venue.EventTicker); ok {
		if ex, ok := extract(tickerEnv); ok {
			out.LatestPrice = toDecimal(ex.Fields["latest_price"])
		}
	}
	if settleEnv, ok := reader.GetMarketData(venue.Binance, symbol, venue.EventFundingSettlement); ok {
		if ex, ok := extract(settleEnv); ok {
			out.LastSettlementTS = toInt64(ex.Fields["last_settlement_time"])
		}
	}

	return out, true
}
