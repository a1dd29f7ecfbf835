package numerics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MAE returns the mean absolute error of the signed errors.
func MAE(errors []float64) float64 {
	if len(errors) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range errors {
		sum += math.Abs(e)
	}
	return sum / float64(len(errors))
}

// MeanStd returns the mean and sample standard deviation of xs.
func MeanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean, variance := stat.MeanVariance(xs, nil)
	if variance < 0 {
		// Negative variance is a calibration-corruption signal upstream;
		// cap at zero so callers never see NaN.
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// Percentile returns the p-quantile (0..1) of xs using linear interpolation.
// xs is copied; the input is not reordered.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// Median3 returns the true median of exactly three samples. With three PWS
// stations the median discards the outlier, which a weighted mean does not.
func Median3(a, b, c float64) float64 {
	return math.Max(math.Min(a, b), math.Min(math.Max(a, b), c))
}
