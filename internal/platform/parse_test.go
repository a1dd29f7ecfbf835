package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheredge/pkg/types"
)

func TestParseRangeBounded(t *testing.T) {
	r, err := ParseRange("34-35°F", types.UnitF)
	require.NoError(t, err)
	require.NotNil(t, r.Min)
	require.NotNil(t, r.Max)
	assert.Equal(t, 33.5, *r.Min)
	assert.Equal(t, 35.5, *r.Max)
	assert.Equal(t, types.RangeBounded, r.Type)
	assert.Equal(t, "34-35", r.Name)
}

func TestParseRangePolymarketStyle(t *testing.T) {
	r, err := ParseRange("34° to 35°", types.UnitF)
	require.NoError(t, err)
	assert.Equal(t, 33.5, *r.Min)
	assert.Equal(t, 35.5, *r.Max)
}

func TestParseRangeUnbounded(t *testing.T) {
	above, err := ParseRange("36°F or above", types.UnitF)
	require.NoError(t, err)
	require.NotNil(t, above.Min)
	assert.Nil(t, above.Max)
	assert.Equal(t, 35.5, *above.Min)
	assert.Equal(t, types.RangeUnbounded, above.Type)

	below, err := ParseRange("33 or below", types.UnitF)
	require.NoError(t, err)
	assert.Nil(t, below.Min)
	require.NotNil(t, below.Max)
	assert.Equal(t, 33.5, *below.Max)

	// "above X" / "below X" phrasing.
	r, err := ParseRange("above 36", types.UnitF)
	require.NoError(t, err)
	assert.Equal(t, 35.5, *r.Min)
}

func TestParseRangeCelsius(t *testing.T) {
	r, err := ParseRange("18-19°C", types.UnitC)
	require.NoError(t, err)
	assert.Equal(t, 17.5, *r.Min)
	assert.Equal(t, 19.5, *r.Max)
	assert.Equal(t, types.UnitC, r.Unit)
}

// Every bounded range must span at least one whole settlement degree after
// correction.
func TestParseRangeMinimumWidth(t *testing.T) {
	labels := []string{"34-35°F", "50-51°F", "72-72°F", "18-19°C", "0-1°C"}
	for _, label := range labels {
		r, err := ParseRange(label, types.UnitF)
		require.NoError(t, err, label)
		assert.GreaterOrEqual(t, *r.Max-*r.Min, 1.0, label)
	}
}

func TestParseRangeRejectsGarbage(t *testing.T) {
	for _, label := range []string{"", "hot", "35-34°F", "°F"} {
		_, err := ParseRange(label, types.UnitF)
		assert.Error(t, err, label)
	}
}

func TestLabelRoundTrip(t *testing.T) {
	cases := []struct {
		label    string
		platform types.Platform
	}{
		{"34-35°F", types.PlatformKalshi},
		{"50-51°F", types.PlatformKalshi},
		{"36°F or above", types.PlatformKalshi},
		{"33°F or below", types.PlatformKalshi},
		{"34° to 35°", types.PlatformPolymarket},
		{"84° to 85°", types.PlatformPolymarket},
	}
	for _, tc := range cases {
		r, err := ParseRange(tc.label, types.UnitF)
		require.NoError(t, err, tc.label)
		assert.Equal(t, tc.label, FormatLabel(r, tc.platform), tc.label)
	}
}

func TestParseKalshiTickerBracket(t *testing.T) {
	r, ok := ParseKalshiTicker("KXHIGHLAX-26AUG24-B60.5", "60-61°F", types.UnitF)
	require.True(t, ok)
	assert.Equal(t, 59.5, *r.Min)
	assert.Equal(t, 61.5, *r.Max)
	assert.Equal(t, "60-61", r.Name)
}

func TestParseKalshiTickerThreshold(t *testing.T) {
	above, ok := ParseKalshiTicker("KXHIGHLAX-26AUG24-T63", "Will the high be above 63?", types.UnitF)
	require.True(t, ok)
	require.NotNil(t, above.Min)
	assert.Nil(t, above.Max)
	assert.Equal(t, 62.5, *above.Min)

	below, ok := ParseKalshiTicker("KXHIGHLAX-26AUG24-T56", "Will the high be 56 or lower?", types.UnitF)
	require.True(t, ok)
	assert.Nil(t, below.Min)
	require.NotNil(t, below.Max)
	assert.Equal(t, 56.5, *below.Max)
}

func TestParseKalshiTickerRejectsShort(t *testing.T) {
	_, ok := ParseKalshiTicker("BADTICKER", "", types.UnitF)
	assert.False(t, ok)
}
