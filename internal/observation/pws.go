package observation

import (
	"sync"

	"weatheredge/internal/numerics"
)

// CorrectedSample is one PWS reading after bias correction.
type CorrectedSample struct {
	StationID string
	Raw       float64
	Corrected float64
	Bias      float64
}

// CorrectedMedian reduces bias-corrected samples to one estimate. With
// three stations the true median discards an outlier entirely, which a
// weighted mean cannot; with two it averages, with one it passes through.
func CorrectedMedian(samples []CorrectedSample) (float64, bool) {
	switch len(samples) {
	case 0:
		return 0, false
	case 1:
		return samples[0].Corrected, true
	case 2:
		return (samples[0].Corrected + samples[1].Corrected) / 2, true
	default:
		return numerics.Median3(
			samples[0].Corrected,
			samples[1].Corrected,
			samples[2].Corrected,
		), true
	}
}

// biasTracker keeps a smoothed per-station offset against the
// authoritative airport reading. In-memory only; resets on restart, which
// just means a few polls of uncorrected (conservative) readings.
type biasTracker struct {
	mu     sync.Mutex
	alpha  float64
	biases map[string]float64
}

func newBiasTracker(alpha float64) *biasTracker {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &biasTracker{alpha: alpha, biases: make(map[string]float64)}
}

// observe updates the station's bias from a simultaneous authoritative
// reading and returns the current smoothed value.
func (b *biasTracker) observe(stationID string, stationTemp, authoritativeTemp float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	diff := stationTemp - authoritativeTemp
	prev, ok := b.biases[stationID]
	if !ok {
		b.biases[stationID] = diff
		return diff
	}
	next := prev + b.alpha*(diff-prev)
	b.biases[stationID] = next
	return next
}

// bias returns the current smoothed bias, 0 for unseen stations.
func (b *biasTracker) bias(stationID string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.biases[stationID]
}
