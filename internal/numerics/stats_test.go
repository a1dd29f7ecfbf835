package numerics

import (
	"math"
	"testing"
)

func TestMAE(t *testing.T) {
	if got := MAE([]float64{1, -2, 3}); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("MAE = %v, want 2", got)
	}
	if got := MAE(nil); got != 0 {
		t.Errorf("MAE(nil) = %v, want 0", got)
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(mean-5.0) > 1e-9 {
		t.Errorf("mean = %v, want 5", mean)
	}
	// Sample std dev of the classic example set.
	if math.Abs(std-2.13809) > 1e-4 {
		t.Errorf("std = %v, want ~2.13809", std)
	}
}

func TestMedian3_DiscardsOutlier(t *testing.T) {
	tests := []struct {
		a, b, c, want float64
	}{
		{70.1, 70.3, 89.9, 70.3}, // single-station spike ignored
		{70.3, 70.1, 55.0, 70.1},
		{1, 2, 3, 2},
		{3, 1, 2, 2},
		{5, 5, 5, 5},
	}
	for _, tt := range tests {
		if got := Median3(tt.a, tt.b, tt.c); got != tt.want {
			t.Errorf("Median3(%v, %v, %v) = %v, want %v", tt.a, tt.b, tt.c, got, tt.want)
		}
	}
}

func TestPercentile(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := Percentile(xs, 0.5); math.Abs(got-5.5) > 1.0 {
		t.Errorf("p50 = %v, want ~5.5", got)
	}
	lo := Percentile(xs, 0.05)
	hi := Percentile(xs, 0.95)
	if lo >= hi {
		t.Errorf("p5 (%v) >= p95 (%v)", lo, hi)
	}
}
