package forecast

import (
	"fmt"

	"weatheredge/internal/numerics"
	"weatheredge/internal/storage"
)

// ProbBucket maps a probability to its decile label, "0.3-0.4" style.
func ProbBucket(p float64) string {
	if p < 0 {
		p = 0
	}
	if p >= 1 {
		return "0.9-1.0"
	}
	lo := float64(int(p*10)) / 10
	return fmt.Sprintf("%.1f-%.1f", lo, lo+0.1)
}

// Calibrator applies the model-calibration correction ratio.
type Calibrator struct {
	buckets  map[string]storage.ModelCalibrationBucket
	minN     int
	maxRatio float64
}

// NewCalibrator wraps a loaded calibration table.
func NewCalibrator(buckets map[string]storage.ModelCalibrationBucket, minN int, maxRatio float64) *Calibrator {
	return &Calibrator{buckets: buckets, minN: minN, maxRatio: maxRatio}
}

// Correct returns the corrected probability and the bucket label. Raw
// passes through when the bucket is missing or thin; the ratio is capped
// even though the rebuild also caps, since old rows may predate the cap.
func (c *Calibrator) Correct(raw float64, rangeType string) (float64, string) {
	bucket := ProbBucket(raw)
	if c == nil || c.buckets == nil {
		return raw, bucket
	}
	b, ok := c.buckets[rangeType+"|"+bucket]
	if !ok || b.N < c.minN {
		return raw, bucket
	}

	ratio := b.CorrectionRatio.Float64()
	if c.maxRatio > 0 {
		ratio = numerics.Clamp(ratio, 1/c.maxRatio, c.maxRatio)
	}
	return numerics.Clamp(raw*ratio, 0, 1), bucket
}
