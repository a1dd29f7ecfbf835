package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

func ptr(f float64) *float64 { return &f }

func bounded(lo, hi float64) types.TempRange {
	return types.TempRange{Min: &lo, Max: &hi, Type: types.RangeBounded, Unit: types.UnitF}
}

func monitorCfg() config.MonitorConfig {
	return config.Default().Monitor
}

func baseView() TradeView {
	return TradeView{
		Side:      types.SideYes,
		Range:     bounded(69.5, 71.5),
		EntryAsk:  0.40,
		Bid:       0.45,
		Ask:       0.50,
		Corrected: 0.55,
	}
}

func TestGuaranteedWinPinsOpen(t *testing.T) {
	v := baseView()
	v.Side = types.SideNo
	v.SettleHigh = ptr(72.0) // ceiling exceeded: NO locked

	// Make edge_gone want to fire at the same time; the lock outranks it.
	v.Corrected = 0.10
	v.Bid = 0.45

	verdict := EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalGuaranteedWin, verdict.Signal)
	assert.False(t, verdict.Exit)
}

func TestLockedWinStillTakesProfit(t *testing.T) {
	v := baseView()
	v.Side = types.SideNo
	v.SettleHigh = ptr(72.0) // ceiling exceeded: NO locked

	// A 0.99 bid on a locked position is a free exit, not a reason to wait
	// out settlement.
	v.Bid = 0.99
	verdict := EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalTakeProfit, verdict.Signal)
	assert.True(t, verdict.Exit)

	// Below every tier the lock holds the position open.
	v.Bid = 0.70
	verdict = EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalGuaranteedWin, verdict.Signal)
	assert.False(t, verdict.Exit)
}

func TestGuaranteedWinYesOpenTopOnly(t *testing.T) {
	v := baseView()
	v.Range = types.TempRange{Min: ptr(75.5), Type: types.RangeUnbounded, Unit: types.UnitF}
	v.SettleHigh = ptr(76.0)
	verdict := EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalGuaranteedWin, verdict.Signal)

	// Inside a bounded bracket nothing is locked yet.
	v = baseView()
	v.SettleHigh = ptr(70.5)
	verdict = EvaluateSignals(v, monitorCfg())
	assert.NotEqual(t, SignalGuaranteedWin, verdict.Signal)
}

func TestGuaranteedLossExitsYesOnExceededCeiling(t *testing.T) {
	v := baseView()
	v.ExceededHigh = ptr(72.0)
	v.SettleHigh = ptr(72.0)
	v.Bid = 0.08

	verdict := EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalGuaranteedLoss, verdict.Signal)
	assert.True(t, verdict.Exit)
}

func TestGuaranteedLossExitsNoOnReachedFloor(t *testing.T) {
	v := baseView()
	v.Side = types.SideNo
	v.Range = types.TempRange{Min: ptr(75.5), Type: types.RangeUnbounded, Unit: types.UnitF}
	v.SettleHigh = ptr(75.5)

	verdict := EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalGuaranteedLoss, verdict.Signal)
}

func TestTakeProfitTiers(t *testing.T) {
	v := baseView()
	v.Corrected = 0.97 // keep edge_gone quiet

	// Top tier: any gain at 0.97+.
	v.Bid = 0.97
	verdict := EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalTakeProfit, verdict.Signal)

	// Middle tier needs a 50% gain: 0.90 from 0.40 qualifies.
	v.Bid = 0.90
	verdict = EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalTakeProfit, verdict.Signal)

	// 0.90 from an 0.85 entry is under every tier's gain bar.
	v.EntryAsk = 0.85
	verdict = EvaluateSignals(v, monitorCfg())
	assert.NotEqual(t, SignalTakeProfit, verdict.Signal)
}

func TestTakeProfitFeeGuard(t *testing.T) {
	v := baseView()
	v.Corrected = 0.99
	v.EntryAsk = 0.96
	v.Bid = 0.97
	v.ExitFee = 0.02 // 0.97 - 0.02 < 0.96: sale would lose money

	verdict := EvaluateSignals(v, monitorCfg())
	assert.NotEqual(t, SignalTakeProfit, verdict.Signal)
}

func TestEdgeGone(t *testing.T) {
	v := baseView()
	v.Corrected = 0.30 // entered at 0.40, model now 0.30: thesis dead

	verdict := EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalEdgeGone, verdict.Signal)
	assert.True(t, verdict.Exit)

	// Within the buffer of the entry price the position holds.
	v.Corrected = 0.42
	verdict = EvaluateSignals(v, monitorCfg())
	assert.Empty(t, verdict.Signal)
}

func TestEdgeGoneFiresWhenBidCollapsesWithModel(t *testing.T) {
	// Bid and model fell together; measured against the bid there would be
	// nothing to sell into and the position would sit dead forever.
	v := baseView()
	v.EntryAsk = 0.30
	v.Corrected = 0.10
	v.Bid = 0.08

	verdict := EvaluateSignals(v, monitorCfg())
	assert.Equal(t, SignalEdgeGone, verdict.Signal)
	assert.True(t, verdict.Exit)
}

func TestEdgeGoneSuppressedByCalibration(t *testing.T) {
	v := baseView()
	v.Corrected = 0.30
	v.Bid = 0.45
	v.EdgeBypassHolds = true

	verdict := EvaluateSignals(v, monitorCfg())
	assert.Empty(t, verdict.Signal)
}

func TestNoSignalsBeforeFirstObservation(t *testing.T) {
	v := baseView()
	v.Corrected = 0.45 // fair value: nothing fires
	verdict := EvaluateSignals(v, monitorCfg())
	assert.Empty(t, verdict.Signal)
	assert.False(t, verdict.Exit)
}
