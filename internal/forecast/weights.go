package forecast

import (
	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

// Estimate is one source's fetched high for a (city, date).
type Estimate struct {
	Source string
	High   float64
}

// WeightedEstimate carries the final weight after demotions.
type WeightedEstimate struct {
	Estimate
	MAE      float64
	Weight   float64
	Demotion string // "", "hard", "relative", "soft"
}

// defaultMAE seeds weighting for sources without settled history yet.
const defaultMAE = 2.5

// ComputeWeights assigns 1/MAE weights with the demotion ladder:
// hard demotion above an absolute MAE ceiling, relative demotion above a
// multiple of the best source, and soft demotion (weight capped low
// instead of zeroed) when full demotion would leave fewer than the
// minimum active sources.
func ComputeWeights(estimates []Estimate, maes map[string]float64, unit types.Unit, cfg config.ForecastConfig) []WeightedEstimate {
	if len(estimates) == 0 {
		return nil
	}

	ceiling := cfg.DemotionMAEF
	if unit == types.UnitC {
		ceiling = cfg.DemotionMAEC
	}

	out := make([]WeightedEstimate, len(estimates))
	bestMAE := 0.0
	for i, e := range estimates {
		mae, ok := maes[e.Source]
		if !ok || mae <= 0 {
			mae = defaultMAE
		}
		out[i] = WeightedEstimate{Estimate: e, MAE: mae, Weight: 1 / mae}
		if bestMAE == 0 || mae < bestMAE {
			bestMAE = mae
		}
	}

	// Mark demotions first, then decide soft vs full based on survivors.
	survivors := 0
	for i := range out {
		switch {
		case out[i].MAE > ceiling:
			out[i].Demotion = "hard"
		case cfg.RelativeDemotion > 0 && out[i].MAE > cfg.RelativeDemotion*bestMAE:
			out[i].Demotion = "relative"
		default:
			survivors++
		}
	}

	for i := range out {
		if out[i].Demotion == "" {
			continue
		}
		if survivors < cfg.MinActiveSources {
			// Keep the source alive at a capped weight rather than
			// dropping below the ensemble floor.
			out[i].Demotion = "soft"
			if out[i].Weight > cfg.SoftDemotionWeight {
				out[i].Weight = cfg.SoftDemotionWeight
			}
			survivors++
		} else {
			out[i].Weight = 0
		}
	}

	return out
}

// WeightedMean folds the estimates, optionally boosting one source (the
// platform's own resolution source) by a multiplier.
func WeightedMean(weighted []WeightedEstimate, boostSource string, boost float64) (mean float64, totalWeight float64) {
	var sum, wsum float64
	for _, w := range weighted {
		weight := w.Weight
		if boostSource != "" && w.Source == boostSource && boost > 0 {
			weight *= boost
		}
		sum += weight * w.High
		wsum += weight
	}
	if wsum == 0 {
		return 0, 0
	}
	return sum / wsum, wsum
}

// ActiveCount counts sources contributing non-zero weight.
func ActiveCount(weighted []WeightedEstimate) int {
	n := 0
	for _, w := range weighted {
		if w.Weight > 0 {
			n++
		}
	}
	return n
}

// SourceSpread is the max-min disagreement across contributing sources.
func SourceSpread(weighted []WeightedEstimate) float64 {
	var lo, hi float64
	first := true
	for _, w := range weighted {
		if w.Weight == 0 {
			continue
		}
		if first {
			lo, hi = w.High, w.High
			first = false
			continue
		}
		if w.High < lo {
			lo = w.High
		}
		if w.High > hi {
			hi = w.High
		}
	}
	if first {
		return 0
	}
	return hi - lo
}
