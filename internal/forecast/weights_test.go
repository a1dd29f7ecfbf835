package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		MinActiveSources:   2,
		DemotionMAEF:       5.0,
		DemotionMAEC:       2.8,
		RelativeDemotion:   2.0,
		SoftDemotionWeight: 0.10,
		KalshiSourceBoost:  1.5,
	}
}

func TestComputeWeightsInverseMAE(t *testing.T) {
	estimates := []Estimate{
		{Source: "open_meteo", High: 80},
		{Source: "nws", High: 82},
	}
	maes := map[string]float64{"open_meteo": 2.0, "nws": 1.0}

	w := ComputeWeights(estimates, maes, types.UnitF, testForecastConfig())
	require.Len(t, w, 2)
	byName := map[string]WeightedEstimate{w[0].Source: w[0], w[1].Source: w[1]}
	assert.InDelta(t, 0.5, byName["open_meteo"].Weight, 1e-9)
	assert.InDelta(t, 1.0, byName["nws"].Weight, 1e-9)
}

func TestComputeWeightsHardDemotion(t *testing.T) {
	estimates := []Estimate{
		{Source: "a", High: 80},
		{Source: "b", High: 81},
		{Source: "c", High: 95},
	}
	maes := map[string]float64{"a": 1.5, "b": 2.0, "c": 7.0}

	w := ComputeWeights(estimates, maes, types.UnitF, testForecastConfig())
	for _, e := range w {
		if e.Source == "c" {
			assert.Equal(t, "hard", e.Demotion)
			assert.Equal(t, 0.0, e.Weight)
		} else {
			assert.Empty(t, e.Demotion)
			assert.Greater(t, e.Weight, 0.0)
		}
	}
}

func TestComputeWeightsRelativeDemotion(t *testing.T) {
	// MAE 3.5 is under the hard ceiling but more than 2x the best (1.0).
	estimates := []Estimate{
		{Source: "a", High: 80},
		{Source: "b", High: 81},
		{Source: "c", High: 85},
	}
	maes := map[string]float64{"a": 1.0, "b": 1.8, "c": 3.5}

	w := ComputeWeights(estimates, maes, types.UnitF, testForecastConfig())
	for _, e := range w {
		if e.Source == "c" {
			assert.Equal(t, "relative", e.Demotion)
			assert.Equal(t, 0.0, e.Weight)
		}
	}
}

// When dropping a demotable source would leave fewer than the minimum
// active sources, it stays in at a capped weight instead.
func TestComputeWeightsSoftDemotion(t *testing.T) {
	estimates := []Estimate{
		{Source: "a", High: 80},
		{Source: "b", High: 90},
	}
	maes := map[string]float64{"a": 1.0, "b": 6.0}

	w := ComputeWeights(estimates, maes, types.UnitF, testForecastConfig())
	byName := map[string]WeightedEstimate{w[0].Source: w[0], w[1].Source: w[1]}
	assert.Equal(t, "soft", byName["b"].Demotion)
	assert.Equal(t, 0.10, byName["b"].Weight)
	assert.Equal(t, 2, ActiveCount(w))
}

func TestComputeWeightsCelsiusCeiling(t *testing.T) {
	estimates := []Estimate{
		{Source: "a", High: 20},
		{Source: "b", High: 21},
		{Source: "c", High: 22},
	}
	// 3.0C exceeds the 2.8C ceiling but not the 5.0F one.
	maes := map[string]float64{"a": 1.0, "b": 1.2, "c": 3.0}

	w := ComputeWeights(estimates, maes, types.UnitC, testForecastConfig())
	for _, e := range w {
		if e.Source == "c" {
			assert.Equal(t, "hard", e.Demotion)
		}
	}
}

func TestWeightedMeanWithBoost(t *testing.T) {
	w := []WeightedEstimate{
		{Estimate: Estimate{Source: "open_meteo", High: 80}, Weight: 1.0},
		{Estimate: Estimate{Source: "nws", High: 84}, Weight: 1.0},
	}

	plain, _ := WeightedMean(w, "", 0)
	assert.InDelta(t, 82.0, plain, 1e-9)

	// Boost 1.5 shifts the mean toward NWS: (80 + 1.5*84) / 2.5 = 82.4.
	boosted, _ := WeightedMean(w, "nws", 1.5)
	assert.InDelta(t, 82.4, boosted, 1e-9)

	// Boost 0 is a no-op: cities without NWS priority price off the plain
	// ensemble even when a boost source is named.
	unboosted, _ := WeightedMean(w, "nws", 0)
	assert.InDelta(t, plain, unboosted, 1e-9)
}

func TestSourceSpreadIgnoresDemoted(t *testing.T) {
	w := []WeightedEstimate{
		{Estimate: Estimate{Source: "a", High: 80}, Weight: 1},
		{Estimate: Estimate{Source: "b", High: 83}, Weight: 0.5},
		{Estimate: Estimate{Source: "c", High: 95}, Weight: 0},
	}
	assert.InDelta(t, 3.0, SourceSpread(w), 1e-9)
}

func TestComputeWeightsUnknownSourceGetsDefault(t *testing.T) {
	w := ComputeWeights([]Estimate{{Source: "new", High: 70}}, nil, types.UnitF, testForecastConfig())
	require.Len(t, w, 1)
	assert.Equal(t, defaultMAE, w[0].MAE)
}
