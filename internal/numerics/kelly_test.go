package numerics

import (
	"math"
	"testing"
)

func TestKelly_PublishedExample(t *testing.T) {
	// p=0.80 at 75c: b = 0.25/0.75 = 1/3, kelly = (b*p - q)/b = 0.2.
	k := Kelly(0.80, 0.75)
	if math.Abs(k-0.2) > 1e-9 {
		t.Errorf("Kelly(0.80, 0.75) = %v, want 0.2", k)
	}

	half := FractionalKelly(0.80, 0.75, 0.5)
	if math.Abs(half-0.1) > 1e-9 {
		t.Errorf("half-Kelly = %v, want 0.1", half)
	}

	// The naive (p*payout - q)/payout form would return 0.6 here; make
	// sure we are nowhere near it.
	if k > 0.3 {
		t.Errorf("Kelly suspiciously large (%v); naive formula in use?", k)
	}
}

func TestKelly_NegativeEdgeIsZero(t *testing.T) {
	tests := []struct {
		p, ask float64
	}{
		{0.50, 0.60},
		{0.10, 0.15},
		{0.75, 0.75}, // zero edge
	}
	for _, tt := range tests {
		if k := Kelly(tt.p, tt.ask); k != 0 {
			t.Errorf("Kelly(%v, %v) = %v, want 0", tt.p, tt.ask, k)
		}
	}
}

func TestKelly_DegenerateInputs(t *testing.T) {
	for _, ask := range []float64{0, 1, -0.2, 1.5} {
		if k := Kelly(0.9, ask); k != 0 {
			t.Errorf("Kelly(0.9, %v) = %v, want 0", ask, k)
		}
	}
}
