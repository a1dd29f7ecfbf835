// Package scanner joins markets with forecast distributions, drives every
// (range, side) through the filter pipeline and emits candidate entries
// plus append-only opportunity records.
package scanner

import (
	"weatheredge/internal/config"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

// Filter reasons, recorded verbatim on opportunities. Order matters: the
// first failing filter names the reason.
const (
	FilterPlatformDisabled  = "platform_trading_disabled"
	FilterKalshiCityBlocked = "kalshi_city_blocked"
	FilterGhostMarket       = "ghost_market"
	FilterNoAskFloor        = "no_ask_floor"
	FilterNoAskCap          = "no_ask_cap"
	FilterAdjacentNo        = "adjacent_no"
	FilterMinHours          = "min_hours"
	FilterCityMAEGate       = "city_mae_gate"
	FilterHighSpread        = "high_spread"
	FilterSpreadPct         = "spread_pct"
	FilterStdRangeRatio     = "high_std_range_ratio"
	FilterModelMarketRatio  = "max_model_market_ratio"
	FilterMarketDivergence  = "market_divergence"
	FilterObsBoundary       = "observation_boundary"
	FilterCalBlocksEdge     = "calBlocksEdge"
	FilterLowEdge           = "low_edge"
)

// EvalInput is everything the filter chain inspects for one (range, side).
type EvalInput struct {
	Side      types.Side
	Range     types.TempRange
	Platform  types.Platform
	Ask       float64
	Bid       float64
	Spread    float64
	RawProb   float64 // model probability of THIS side winning
	Corrected float64
	Edge      float64 // corrected - ask

	HoursToResolution float64
	CityMAE           float64 // rolling ensemble MAE, 0 when unknown
	Sigma             float64
	Divergence        float64  // |ensemble - market-implied mean|
	ObservationHigh   *float64 // today's running high, nil before first report

	PlatformEnabled bool
	CityBlocked     bool // kalshi-only per-city mute
	AdjacentToYes   bool // NO range sits entirely below a held YES floor

	CalBucket *storage.MarketCalibrationBucket // nil when bucket absent
}

// EdgeBypass is the calibration-confirmation rule shared by scanner entry
// and the monitor's edge_gone suppression. Keeping them the same predicate
// is load-bearing: if the scanner admits on a bucket the monitor doesn't
// honor, every such entry is killed one cycle later.
func EdgeBypass(bucket *storage.MarketCalibrationBucket, ask float64, rawEdge float64, cal config.CalibrationConfig) bool {
	if bucket == nil {
		return false
	}
	return bucket.N >= cal.CalConfirmsMinN &&
		bucket.EmpiricalWinRate.Float64()-ask >= cal.CalMinTradeEdge &&
		rawEdge >= 0
}

// Evaluate runs the chain in order, returning the first failing filter
// reason, whether the calibration bypass fired, or "" for a clean pass.
func Evaluate(in EvalInput, f config.FilterConfig, cal config.CalibrationConfig, maeCeiling float64) (reason string, calConfirmed bool) {
	calConfirmed = EdgeBypass(in.CalBucket, in.Ask, in.RawProb-in.Ask, cal)

	if !in.PlatformEnabled {
		return FilterPlatformDisabled, calConfirmed
	}
	if in.Platform == types.PlatformKalshi && in.CityBlocked {
		return FilterKalshiCityBlocked, calConfirmed
	}

	// Price window. Ghost markets show an empty book; the NO side has a
	// narrow profitable window enforced from both ends.
	if in.Ask <= 0 && in.Bid <= 0 {
		return FilterGhostMarket, calConfirmed
	}
	if in.Side == types.SideYes {
		if in.Ask < f.MinAskYes {
			return FilterNoAskFloor, calConfirmed
		}
	} else {
		if in.Ask < f.MinAskNo {
			return FilterNoAskFloor, calConfirmed
		}
		if in.Ask > f.MaxAskNo {
			return FilterNoAskCap, calConfirmed
		}
		if in.AdjacentToYes {
			return FilterAdjacentNo, calConfirmed
		}
	}

	if in.HoursToResolution < f.MinHoursToResolution {
		return FilterMinHours, calConfirmed
	}

	if in.CityMAE > 0 && maeCeiling > 0 && in.CityMAE > maeCeiling {
		return FilterCityMAEGate, calConfirmed
	}

	if in.Spread > f.MaxSpread {
		return FilterHighSpread, calConfirmed
	}
	if in.Ask > 0 && in.Spread/in.Ask > f.MaxSpreadPct {
		return FilterSpreadPct, calConfirmed
	}

	if in.Side == types.SideYes && in.Range.Type == types.RangeBounded {
		if width := in.Range.Width(); width > 0 && in.Sigma > f.MaxStdRangeRatio*width {
			return FilterStdRangeRatio, calConfirmed
		}
	}

	if in.Ask > 0 && in.RawProb > f.MaxModelMarketRatio*in.Ask && !calConfirmed {
		return FilterModelMarketRatio, calConfirmed
	}

	if in.Divergence > f.MaxMarketDivergence {
		return FilterMarketDivergence, calConfirmed
	}

	// About-to-tip markets: today's high already within the buffer of the
	// range ceiling.
	if in.ObservationHigh != nil && in.Range.Max != nil &&
		*in.Range.Max-*in.ObservationHigh < f.ObsBoundaryBufferF {
		return FilterObsBoundary, calConfirmed
	}

	if in.CalBucket != nil && in.CalBucket.N >= cal.CalBlocksMinN &&
		in.CalBucket.TrueEdge.Float64() < 0 {
		return FilterCalBlocksEdge, calConfirmed
	}

	if in.Edge < f.MinEdgePct {
		return FilterLowEdge, calConfirmed
	}

	return "", calConfirmed
}

// LeadTimeBucket labels hours-to-resolution for calibration keys.
func LeadTimeBucket(hours float64) string {
	switch {
	case hours < 6:
		return "0-6h"
	case hours < 24:
		return "6-24h"
	case hours < 72:
		return "24-72h"
	default:
		return "72h+"
	}
}

// PriceBucket labels the ask for calibration keys.
func PriceBucket(ask float64) string {
	switch {
	case ask < 0.10:
		return "0.00-0.10"
	case ask < 0.25:
		return "0.10-0.25"
	case ask < 0.50:
		return "0.25-0.50"
	case ask < 0.75:
		return "0.50-0.75"
	case ask < 0.90:
		return "0.75-0.90"
	default:
		return "0.90-1.00"
	}
}
