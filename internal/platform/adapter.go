// Package platform gives the engine one view over heterogeneous market
// venues: market fetch with complete pagination, range parsing with the
// continuity correction, and per-platform fee models.
package platform

import (
	"context"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

// Adapter is the per-venue capability set.
type Adapter interface {
	// Platform tags the venue.
	Platform() types.Platform

	// FetchMarkets returns every tradable range for a city on a city-local
	// date. Pagination must be followed to exhaustion.
	FetchMarkets(ctx context.Context, city config.CityConfig, date string) ([]types.Market, error)

	// ParseRange parses a raw label into a corrected range.
	ParseRange(label string, unit types.Unit) (types.TempRange, error)

	// EntryFee is the per-share fee at a given ask.
	EntryFee(ask float64) float64

	// ResolutionSource names the authoritative settlement source.
	ResolutionSource() string
}

// EffectiveCost is the per-share outlay used when sizing from a dollar
// budget: contract price plus entry fee.
func EffectiveCost(a Adapter, ask float64) float64 {
	return ask + a.EntryFee(ask)
}

// NoQuote derives the NO-side book from the YES snapshot: buying NO fills
// against YES bids, so ask_no = 1 - bid_yes and bid_no = 1 - ask_yes.
func NoQuote(m types.Market) (bid, ask float64) {
	if m.BestAsk > 0 {
		bid = 1 - m.BestAsk
	}
	if m.BestBid > 0 {
		ask = 1 - m.BestBid
	}
	return bid, ask
}
