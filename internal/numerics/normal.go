// Package numerics holds the probability and sizing formulas the engine
// depends on. Everything here is pure and covered by reference-value tests;
// a transcription error in any of these silently destroys calibration.
package numerics

import "math"

// Abramowitz & Stegun 7.1.26 rational approximation coefficients for erf.
const (
	erfP  = 0.3275911
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
)

// NormCDF returns Phi(x), the standard normal CDF.
//
// Uses A&S 7.1.26 on z = |x|/sqrt(2) with exp(-z*z). The substitution
// matters: evaluating the polynomial against |x| with exp(-x*x/2) is off by
// ~2.9% at one sigma, which is enough to invert the sign of most edges.
func NormCDF(x float64) float64 {
	z := math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + erfP*z)
	poly := t * (erfA1 + t*(erfA2+t*(erfA3+t*(erfA4+t*erfA5))))
	erf := 1.0 - poly*math.Exp(-z*z)

	if x < 0 {
		return 0.5 * (1.0 - erf)
	}
	return 0.5 * (1.0 + erf)
}

// RangeProbability returns the model probability that a daily-high
// observation drawn from N(mean, sigma) lands inside a contract range.
// Bounds must already carry the continuity correction. A nil bound marks
// the unbounded side ("above X" has nil max, "X or below" has nil min).
func RangeProbability(mean, sigma float64, rangeMin, rangeMax *float64) float64 {
	if sigma <= 0 {
		return degenerateProbability(mean, rangeMin, rangeMax)
	}

	switch {
	case rangeMin == nil && rangeMax == nil:
		return 1.0
	case rangeMin == nil:
		return NormCDF((*rangeMax - mean) / sigma)
	case rangeMax == nil:
		return 1.0 - NormCDF((*rangeMin-mean)/sigma)
	default:
		p := NormCDF((*rangeMax-mean)/sigma) - NormCDF((*rangeMin-mean)/sigma)
		return Clamp(p, 0, 1)
	}
}

// degenerateProbability handles sigma<=0 as a point mass at mean.
func degenerateProbability(mean float64, rangeMin, rangeMax *float64) float64 {
	if rangeMin != nil && mean < *rangeMin {
		return 0
	}
	if rangeMax != nil && mean > *rangeMax {
		return 0
	}
	return 1
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
