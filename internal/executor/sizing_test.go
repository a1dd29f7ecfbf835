package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKellyDollars(t *testing.T) {
	// 8% Kelly under the 10% cap: full fraction applies.
	assert.InDelta(t, 80.0, KellyDollars(1000, 0.08, 0.10), 1e-9)

	// 30% Kelly is capped at the per-trade ceiling.
	assert.InDelta(t, 100.0, KellyDollars(1000, 0.30, 0.10), 1e-9)

	assert.Zero(t, KellyDollars(1000, 0, 0.10))
	assert.Zero(t, KellyDollars(0, 0.08, 0.10))
}

func TestSharesFloorsAtEffectiveCost(t *testing.T) {
	// $100 at an effective cost of $0.42/share: 238 whole contracts.
	assert.Equal(t, 238, Shares(100, 0.42))
	assert.Equal(t, 0, Shares(100, 0))
	assert.Equal(t, 0, Shares(0, 0.42))
}

func TestCityFactor(t *testing.T) {
	// No correction needed: full size.
	assert.InDelta(t, 1.0, CityFactor(0, 2.0, 0.25), 1e-9)

	// Halfway to the ceiling: half size.
	assert.InDelta(t, 0.5, CityFactor(1.0, 2.0, 0.25), 1e-9)

	// At or past the ceiling: floor, never zero.
	assert.InDelta(t, 0.25, CityFactor(2.0, 2.0, 0.25), 1e-9)
	assert.InDelta(t, 0.25, CityFactor(5.0, 2.0, 0.25), 1e-9)
}

func TestTimeFactor(t *testing.T) {
	// Full size through the morning.
	assert.InDelta(t, 1.0, TimeFactor(9, 12, 15.5, 0.25), 1e-9)
	assert.InDelta(t, 1.0, TimeFactor(12, 12, 15.5, 1e-9), 1e-9)

	// Linear decay: halfway through the window loses half the headroom.
	mid := 12 + (15.5-12)/2
	assert.InDelta(t, 1-0.5*(1-0.25), TimeFactor(mid, 12, 15.5, 0.25), 1e-9)

	// At and past the cutoff: floor.
	assert.InDelta(t, 0.25, TimeFactor(15.5, 12, 15.5, 0.25), 1e-9)
	assert.InDelta(t, 0.25, TimeFactor(17, 12, 15.5, 0.25), 1e-9)

	// Degenerate window never divides by zero.
	assert.InDelta(t, 1.0, TimeFactor(14, 15, 15, 0.25), 1e-9)
}
