package pipeline

import (
	"gonum.org/v1/gonum/stat"

	"github.com/shl888/feedcore/internal/cache"
)

// rollingWindowSize bounds how many recent prices feed the rolling average.
const rollingWindowSize = 20

// computePerVenue enriches an Aligned record with per-venue derived fields:
// a bounded rolling average price (cached per venue, evicted by symbol
// activity) and the settlement-interval gaps each venue's own timestamps
// imply.
func computePerVenue(a Aligned, okxCache, binanceCache *cache.VenueCache) PerVenueComputed {
	out := PerVenueComputed{Aligned: a}

	if a.OKX.LatestPrice != nil {
		window := pushWindow(okxCache, a.CanonicalSymbol, a.OKX.LatestPrice.InexactFloat64())
		if len(window) > 0 {
			avg := stat.Mean(window, nil)
			out.OKXRollingAvgPrice = &avg
		}
	}
	if a.Binance.LatestPrice != nil {
		window := pushWindow(binanceCache, a.CanonicalSymbol, a.Binance.LatestPrice.InexactFloat64())
		if len(window) > 0 {
			avg := stat.Mean(window, nil)
			out.BinanceRollingAvgPrice = &avg
		}
	}

	if a.OKX.NextSettlementTS != nil && a.OKX.CurrentSettlementTS != nil {
		interval := *a.OKX.NextSettlementTS - *a.OKX.CurrentSettlementTS
		out.OKXSettlementInterval = &interval
	}
	if a.Binance.CurrentSettlementTS != nil && a.Binance.LastSettlementTS != nil {
		interval := *a.Binance.CurrentSettlementTS - *a.Binance.LastSettlementTS
		out.BinanceFundingInterval = &interval
	}

	return out
}

// pushWindow appends price to the cached window for symbol, trims it to
// rollingWindowSize, writes it back and returns it.
func pushWindow(c *cache.VenueCache, symbol string, price float64) []float64 {
	entry, _ := c.Get(symbol)
	window := append(entry.PriceWindow, price)
	if len(window) > rollingWindowSize {
		window = window[len(window)-rollingWindowSize:]
	}
	c.Put(symbol, cache.Entry{PriceWindow: window})
	return window
}
