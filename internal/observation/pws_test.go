package observation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectedMedianDiscardsOutlier(t *testing.T) {
	// One station reads a solar-heated spike; the median ignores it.
	samples := []CorrectedSample{
		{StationID: "a", Corrected: 71.2},
		{StationID: "b", Corrected: 71.8},
		{StationID: "c", Corrected: 85.0},
	}
	m, ok := CorrectedMedian(samples)
	require.True(t, ok)
	assert.Equal(t, 71.8, m)

	// A weighted mean would land around 76 and trigger false entries.
	mean := (71.2 + 71.8 + 85.0) / 3
	assert.Greater(t, mean, 76.0)
}

func TestCorrectedMedianSmallCounts(t *testing.T) {
	_, ok := CorrectedMedian(nil)
	assert.False(t, ok)

	m, ok := CorrectedMedian([]CorrectedSample{{Corrected: 70}})
	require.True(t, ok)
	assert.Equal(t, 70.0, m)

	m, ok = CorrectedMedian([]CorrectedSample{{Corrected: 70}, {Corrected: 72}})
	require.True(t, ok)
	assert.Equal(t, 71.0, m)
}

func TestBiasTrackerConverges(t *testing.T) {
	b := newBiasTracker(0.5)

	// Station reads consistently 2 degrees hot.
	first := b.observe("KCATEST1", 74, 72)
	assert.Equal(t, 2.0, first)

	for i := 0; i < 10; i++ {
		b.observe("KCATEST1", 74, 72)
	}
	assert.InDelta(t, 2.0, b.bias("KCATEST1"), 1e-6)
}

func TestBiasTrackerSmoothsJumps(t *testing.T) {
	b := newBiasTracker(0.2)
	b.observe("s", 74, 72) // seeds at 2.0

	// A single wild reading moves the bias only a fifth of the way.
	got := b.observe("s", 82, 72)
	assert.InDelta(t, 2.0+0.2*(10.0-2.0), got, 1e-9)
}

func TestBiasTrackerUnseenStation(t *testing.T) {
	b := newBiasTracker(0.2)
	assert.Equal(t, 0.0, b.bias("nobody"))
}
