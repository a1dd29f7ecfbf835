package storage

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericScanBytes(t *testing.T) {
	var n Numeric
	require.NoError(t, n.Scan([]byte("1000.00")))
	assert.Equal(t, 1000.0, n.Float64())

	require.NoError(t, n.Scan([]byte("-12.5")))
	assert.Equal(t, -12.5, n.Float64())
}

// A NUMERIC column scanned without coercion arrives as a string; adding a
// float to it produces garbage. Simulate a bankroll update over ten driver
// round trips and check the total stays a finite machine float.
func TestNumericBankrollStaysFinite(t *testing.T) {
	bankroll := 1000.0
	for i := 0; i < 10; i++ {
		var n Numeric
		require.NoError(t, n.Scan([]byte("100.00")))
		bankroll -= n.Float64()
	}
	assert.False(t, math.IsNaN(bankroll))
	assert.Equal(t, 0.0, bankroll)
}

func TestNumericScanRejectsGarbage(t *testing.T) {
	var n Numeric
	assert.Error(t, n.Scan([]byte("not-a-number")))
	assert.Error(t, n.Scan(struct{}{}))
}

func TestNullNumericRoundTrip(t *testing.T) {
	var n NullNumeric
	require.NoError(t, n.Scan(nil))
	assert.False(t, n.Valid)
	assert.Nil(t, n.Ptr())

	require.NoError(t, n.Scan([]byte("73.4")))
	require.True(t, n.Valid)
	require.NotNil(t, n.Ptr())
	assert.Equal(t, 73.4, *n.Ptr())

	f := 55.0
	assert.Equal(t, NullNumeric{Numeric: 55, Valid: true}, FromPtr(&f))
	assert.Equal(t, NullNumeric{}, FromPtr(nil))
}

func TestNullNumericFloat64(t *testing.T) {
	assert.Equal(t, 73.5, NullNumeric{Numeric: 73.5, Valid: true}.Float64())
	// NULL unwraps to zero, matching sql.Null* zero-value semantics.
	assert.Equal(t, 0.0, NullNumeric{}.Float64())
}

func TestDateScanKeepsCalendarDay(t *testing.T) {
	// DATE handed back as time.Time must keep the stored day regardless of
	// the session timezone.
	var d Date
	ts := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	require.NoError(t, d.Scan(ts))
	assert.Equal(t, "2026-08-24", d.String())

	require.NoError(t, d.Scan([]byte("2026-08-24T00:00:00Z")))
	assert.Equal(t, "2026-08-24", d.String())

	require.NoError(t, d.Scan("2026-08-24"))
	assert.Equal(t, "2026-08-24", d.String())
}

func TestEvaluatorLogAppendTrims(t *testing.T) {
	var log EvaluatorLog
	for i := 0; i < 30; i++ {
		log = log.Append(EvaluatorSnapshot{Bid: float64(i)}, 24)
	}
	require.Len(t, log, 24)
	// Oldest retained entry is #6; newest is #29.
	assert.Equal(t, 6.0, log[0].Bid)
	assert.Equal(t, 29.0, log[23].Bid)
}
