package numerics

import (
	"math"
	"testing"
)

func TestNormCDF_ReferenceValues(t *testing.T) {
	// Reference values from standard normal tables.
	tests := []struct {
		x    float64
		want float64
	}{
		{-3, 0.0013499},
		{-2, 0.0227501},
		{-1, 0.1586553},
		{0, 0.5},
		{1, 0.8413447},
		{2, 0.9772499},
		{3, 0.9986501},
	}

	for _, tt := range tests {
		got := NormCDF(tt.x)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("NormCDF(%v) = %.8f, want %.8f", tt.x, got, tt.want)
		}
	}
}

func TestNormCDF_Symmetry(t *testing.T) {
	for _, x := range []float64{0.1, 0.5, 1.3, 2.7} {
		sum := NormCDF(x) + NormCDF(-x)
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("NormCDF(%v) + NormCDF(-%v) = %v, want 1", x, x, sum)
		}
	}
}

func TestRangeProbability_ContinuityCorrectedBracket(t *testing.T) {
	// "34-35F" parsed with continuity correction is [33.5, 35.5]. With
	// mean 34.5 and sigma 2.0 that is Phi(0.5) - Phi(-0.5).
	lo, hi := 33.5, 35.5
	got := RangeProbability(34.5, 2.0, &lo, &hi)

	if math.Abs(got-0.3829) > 1e-3 {
		t.Errorf("RangeProbability = %.4f, want ~0.3829", got)
	}
	// Sanity: the uncorrected [34.5, 35.5] bracket would be far smaller.
	uLo := 34.5
	uncorrected := RangeProbability(34.5, 2.0, &uLo, &hi)
	if uncorrected > 0.25 {
		t.Errorf("uncorrected bracket unexpectedly large: %.4f", uncorrected)
	}
}

func TestRangeProbability_Unbounded(t *testing.T) {
	threshold := 70.0

	above := RangeProbability(70.0, 3.0, &threshold, nil)
	if math.Abs(above-0.5) > 1e-9 {
		t.Errorf("above-threshold at mean = %v, want 0.5", above)
	}

	below := RangeProbability(70.0, 3.0, nil, &threshold)
	if math.Abs(below-0.5) > 1e-9 {
		t.Errorf("below-threshold at mean = %v, want 0.5", below)
	}

	sum := RangeProbability(65.0, 3.0, &threshold, nil) + RangeProbability(65.0, 3.0, nil, &threshold)
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("complementary unbounded ranges sum to %v, want 1", sum)
	}
}

func TestRangeProbability_ZeroSigma(t *testing.T) {
	lo, hi := 60.0, 62.0
	if got := RangeProbability(61, 0, &lo, &hi); got != 1 {
		t.Errorf("point mass inside range = %v, want 1", got)
	}
	if got := RangeProbability(65, 0, &lo, &hi); got != 0 {
		t.Errorf("point mass outside range = %v, want 0", got)
	}
}
