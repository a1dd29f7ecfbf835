package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"weatheredge/pkg/types"
)

func TestDistributionMeanPlatformSelection(t *testing.T) {
	d := &Distribution{Ensemble: 82.0, KalshiTemp: 82.4, HasKalshiTemp: true}
	assert.Equal(t, 82.4, d.Mean(types.PlatformKalshi))
	assert.Equal(t, 82.0, d.Mean(types.PlatformPolymarket))

	// Without a Kalshi-specific mean every platform prices off the ensemble.
	d = &Distribution{Ensemble: 82.0, KalshiTemp: 82.4}
	assert.Equal(t, 82.0, d.Mean(types.PlatformKalshi))
}

func TestDistributionMeanZeroCelsius(t *testing.T) {
	// A 0 degree boosted mean is a real winter reading, not an absent one.
	d := &Distribution{Ensemble: 1.5, KalshiTemp: 0, HasKalshiTemp: true}
	assert.Equal(t, 0.0, d.Mean(types.PlatformKalshi))
}
