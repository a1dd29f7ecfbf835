package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"weatheredge/pkg/types"
)

func TestSigmaPrefersCityEmpirical(t *testing.T) {
	s, _ := Sigma(SigmaInput{
		CitySigma: 1.8, CityN: 40, PooledSigma: 2.5,
		SpreadF: 1.0, DaysOut: 1, MinSamples: 20, Unit: types.UnitF,
	})
	assert.InDelta(t, 1.8, s, 1e-9)
}

func TestSigmaFallsBackToPooled(t *testing.T) {
	s, _ := Sigma(SigmaInput{
		CitySigma: 1.8, CityN: 5, PooledSigma: 2.5,
		SpreadF: 1.0, DaysOut: 1, MinSamples: 20, Unit: types.UnitF,
	})
	assert.InDelta(t, 2.5, s, 1e-9)
}

func TestSigmaTierTableBySpread(t *testing.T) {
	high, tier := Sigma(SigmaInput{SpreadF: 1.0, DaysOut: 1, MinSamples: 20, Unit: types.UnitF})
	assert.Equal(t, ConfidenceHigh, tier)
	assert.InDelta(t, 2.0, high, 1e-9)

	med, tier := Sigma(SigmaInput{SpreadF: 3.0, DaysOut: 1, MinSamples: 20, Unit: types.UnitF})
	assert.Equal(t, ConfidenceMedium, tier)
	assert.InDelta(t, 3.0, med, 1e-9)

	low, tier := Sigma(SigmaInput{SpreadF: 6.0, DaysOut: 1, MinSamples: 20, Unit: types.UnitF})
	assert.Equal(t, ConfidenceLow, tier)
	assert.InDelta(t, 4.5, low, 1e-9)
}

// Dual-station cities demote exactly one tier.
func TestSigmaDualStationDemotesOneTier(t *testing.T) {
	s, tier := Sigma(SigmaInput{
		SpreadF: 1.0, DaysOut: 1, DualStation: true,
		MinSamples: 20, Unit: types.UnitF,
	})
	assert.Equal(t, ConfidenceMedium, tier)
	assert.InDelta(t, 3.0, s, 1e-9)

	// Already at the floor: low stays low.
	_, tier = Sigma(SigmaInput{
		SpreadF: 6.0, DaysOut: 1, DualStation: true,
		MinSamples: 20, Unit: types.UnitF,
	})
	assert.Equal(t, ConfidenceLow, tier)
}

func TestSigmaScalesWithSqrtDays(t *testing.T) {
	day1, _ := Sigma(SigmaInput{SpreadF: 1.0, DaysOut: 1, MinSamples: 20, Unit: types.UnitF})
	day4, _ := Sigma(SigmaInput{SpreadF: 1.0, DaysOut: 4, MinSamples: 20, Unit: types.UnitF})
	assert.InDelta(t, 2*day1, day4, 1e-9)

	// Sub-day leads clamp to day 1 scaling.
	sub, _ := Sigma(SigmaInput{SpreadF: 1.0, DaysOut: 0.3, MinSamples: 20, Unit: types.UnitF})
	assert.InDelta(t, day1, sub, 1e-9)
}

func TestSigmaCelsiusTierScaling(t *testing.T) {
	s, _ := Sigma(SigmaInput{SpreadF: 1.0, DaysOut: 1, MinSamples: 20, Unit: types.UnitC})
	assert.InDelta(t, 2.0*5/9, s, 1e-9)
}

func TestSigmaNeverZero(t *testing.T) {
	for _, days := range []float64{0, 1, 2, 7} {
		s, _ := Sigma(SigmaInput{DaysOut: days, MinSamples: 20, Unit: types.UnitF})
		assert.True(t, s > 0 && !math.IsNaN(s))
	}
}
