package forecast

import (
	"math"

	"weatheredge/pkg/types"
)

// Confidence tier for the std dev fallback table, indexed by ensemble
// source spread. Tighter agreement earns a narrower distribution.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// tierSigma is day-1 accuracy per tier, in Fahrenheit. Celsius cities
// scale by 5/9.
var tierSigma = map[Confidence]float64{
	ConfidenceHigh:   2.0,
	ConfidenceMedium: 3.0,
	ConfidenceLow:    4.5,
}

// tierBySpread assigns the confidence tier from source disagreement (F).
func tierBySpread(spreadF float64) Confidence {
	switch {
	case spreadF < 2.0:
		return ConfidenceHigh
	case spreadF < 4.0:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// demote widens by one tier.
func demote(c Confidence) Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SigmaInput collects everything the fallback chain can draw on.
type SigmaInput struct {
	// CitySigma is the empirical std dev of corrected-ensemble errors for
	// this city; zero when the city lacks enough settled samples.
	CitySigma float64
	CityN     int
	// PooledSigma is the all-city empirical std dev; zero when unavailable.
	PooledSigma float64
	// SpreadF is the ensemble source disagreement in Fahrenheit.
	SpreadF float64
	// DaysOut is the forecast lead in days (>= 1 for scaling).
	DaysOut float64
	// DualStation marks cities whose two settlement stations have a known
	// microclimate gap.
	DualStation bool
	// MinSamples gates the per-city empirical value.
	MinSamples int
	Unit       types.Unit
}

// Sigma resolves the distribution std dev: per-city empirical, then
// pooled, then the confidence-tier table, time-scaled with sqrt(days
// out) since the empirical values are day-1 accuracy. Dual-station
// cities demote one tier (the tier path) or widen 25% (empirical paths).
func Sigma(in SigmaInput) (sigma float64, tier Confidence) {
	tier = tierBySpread(in.SpreadF)
	if in.DualStation {
		tier = demote(tier)
	}

	switch {
	case in.CitySigma > 0 && in.CityN >= in.MinSamples:
		sigma = in.CitySigma
		if in.DualStation {
			sigma *= 1.25
		}
	case in.PooledSigma > 0:
		sigma = in.PooledSigma
		if in.DualStation {
			sigma *= 1.25
		}
	default:
		sigma = tierSigma[tier]
		if in.Unit == types.UnitC {
			sigma *= 5.0 / 9.0
		}
	}

	days := in.DaysOut
	if days < 1 {
		days = 1
	}
	return sigma * math.Sqrt(days), tier
}
