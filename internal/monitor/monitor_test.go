package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

func obsRow(running float64, station, wuHigh *float64) *storage.Observation {
	return &storage.Observation{
		RunningHigh: storage.Numeric(running),
		StationHigh: storage.FromPtr(station),
		WUHigh:      storage.FromPtr(wuHigh),
	}
}

func TestSelectHighsStationOnlyForNWSTrades(t *testing.T) {
	// A PWS spike pushed the running high past the station reading. The
	// station is what settles, so both lock checks must see 77.0.
	latest := obsRow(78.2, ptr(77.0), nil)

	settle, exceeded, obs, wu := SelectHighs(latest, false)
	require.NotNil(t, settle)
	require.NotNil(t, exceeded)
	assert.Equal(t, 77.0, *settle)
	assert.Equal(t, 77.0, *exceeded)
	assert.Equal(t, 78.2, *obs)
	assert.Nil(t, wu)
}

func TestSelectHighsNilBeforeFirstStationReading(t *testing.T) {
	// Non-station sources alone give no settle-side evidence.
	settle, exceeded, obs, _ := SelectHighs(obsRow(78.2, nil, nil), false)
	assert.Nil(t, settle)
	assert.Nil(t, exceeded)
	assert.Equal(t, 78.2, *obs)
}

func TestSelectHighsWUSettled(t *testing.T) {
	// Diverging feeds: the win side takes the lower of station and WU, the
	// exceeded side takes WU alone since WU settles the market.
	settle, exceeded, _, wu := SelectHighs(obsRow(79.0, ptr(77.0), ptr(79.0)), true)
	require.NotNil(t, settle)
	require.NotNil(t, exceeded)
	assert.Equal(t, 77.0, *settle)
	assert.Equal(t, 79.0, *exceeded)
	assert.Equal(t, 79.0, *wu)

	// No WU report yet: nothing to judge a WU market against.
	settle, exceeded, _, _ = SelectHighs(obsRow(78.2, ptr(77.0), nil), true)
	assert.Nil(t, settle)
	assert.Nil(t, exceeded)
}

func TestInflatedRunningHighDoesNotKillYesBracket(t *testing.T) {
	// Bracket 75.5..77.5 with the station at 77.0: still alive. The 78.2
	// running high came from a hot PWS and must not force a loss exit.
	latest := obsRow(78.2, ptr(77.0), nil)
	settle, exceeded, _, _ := SelectHighs(latest, false)

	v := TradeView{
		Side:      types.SideYes,
		Range:     bounded(75.5, 77.5),
		EntryAsk:  0.40,
		Bid:       0.45,
		Corrected: 0.55,

		SettleHigh:   settle,
		ExceededHigh: exceeded,
	}
	verdict := EvaluateSignals(v, monitorCfg())
	assert.NotEqual(t, SignalGuaranteedLoss, verdict.Signal)
	assert.False(t, verdict.Exit)

	// Once the station itself clears the ceiling the loss is real.
	latest = obsRow(78.2, ptr(77.6), nil)
	settle, exceeded, _, _ = SelectHighs(latest, false)
	v.SettleHigh, v.ExceededHigh = settle, exceeded
	verdict = EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalGuaranteedLoss, verdict.Signal)
	assert.True(t, verdict.Exit)
}
