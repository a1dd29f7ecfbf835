package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"weatheredge/internal/storage"
)

func TestProbBucket(t *testing.T) {
	assert.Equal(t, "0.0-0.1", ProbBucket(0.05))
	assert.Equal(t, "0.3-0.4", ProbBucket(0.38))
	assert.Equal(t, "0.9-1.0", ProbBucket(0.95))
	assert.Equal(t, "0.9-1.0", ProbBucket(1.0))
	assert.Equal(t, "0.0-0.1", ProbBucket(-0.2))
}

func calTable() map[string]storage.ModelCalibrationBucket {
	return map[string]storage.ModelCalibrationBucket{
		"bounded|0.3-0.4": {RangeType: "bounded", ProbBucket: "0.3-0.4", N: 50, CorrectionRatio: 0.8},
		"bounded|0.5-0.6": {RangeType: "bounded", ProbBucket: "0.5-0.6", N: 5, CorrectionRatio: 0.5},
		"bounded|0.8-0.9": {RangeType: "bounded", ProbBucket: "0.8-0.9", N: 50, CorrectionRatio: 4.0},
	}
}

func TestCalibratorAppliesRatio(t *testing.T) {
	c := NewCalibrator(calTable(), 15, 2.0)
	corrected, bucket := c.Correct(0.35, "bounded")
	assert.Equal(t, "0.3-0.4", bucket)
	assert.InDelta(t, 0.28, corrected, 1e-9)
}

func TestCalibratorThinBucketPassesRaw(t *testing.T) {
	c := NewCalibrator(calTable(), 15, 2.0)
	corrected, _ := c.Correct(0.55, "bounded")
	assert.Equal(t, 0.55, corrected)
}

func TestCalibratorMissingBucketPassesRaw(t *testing.T) {
	c := NewCalibrator(calTable(), 15, 2.0)
	corrected, _ := c.Correct(0.15, "bounded")
	assert.Equal(t, 0.15, corrected)

	corrected, _ = c.Correct(0.35, "unbounded")
	assert.Equal(t, 0.35, corrected)
}

// A stored ratio above the cap is clamped at apply time too.
func TestCalibratorCapsRatio(t *testing.T) {
	c := NewCalibrator(calTable(), 15, 2.0)
	corrected, _ := c.Correct(0.85, "bounded")
	assert.InDelta(t, 1.0, corrected, 1e-9) // 0.85*2.0 clamped to 1
}

func TestCalibratorNilTable(t *testing.T) {
	var c *Calibrator
	corrected, bucket := c.Correct(0.42, "bounded")
	assert.Equal(t, 0.42, corrected)
	assert.Equal(t, "0.4-0.5", bucket)
}
