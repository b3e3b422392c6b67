package pipeline

// computeCrossVenue derives the cross-venue comparison fields and produces
// the record handed to the downstream consumer.
func computeCrossVenue(p PerVenueComputed) FinalRecord {
	out := FinalRecord{PerVenueComputed: p}

	if p.OKX.FundingRate != nil && p.Binance.FundingRate != nil {
		diff := p.OKX.FundingRate.Sub(*p.Binance.FundingRate)
		out.FundingRateDiff = &diff
	}
	if p.OKX.LatestPrice != nil && p.Binance.LatestPrice != nil {
		basis := p.OKX.LatestPrice.Sub(*p.Binance.LatestPrice)
		out.PriceBasis = &basis
	}

	return out
}
