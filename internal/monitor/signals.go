// Package monitor walks open trades every cycle, re-pricing them against
// live books, fresh forecasts and the day's observed high, and exits the
// ones whose thesis has died or already paid.
package monitor

import (
	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

// Evaluator names, in priority order. The first firing evaluator decides;
// a locked win pins the trade open unless a take-profit tier already pays
// out nearly the full settlement value.
const (
	SignalGuaranteedWin  = "guaranteed_win"
	SignalGuaranteedLoss = "guaranteed_loss"
	SignalTakeProfit     = "take_profit"
	SignalEdgeGone       = "edge_gone"
)

// Verdict is the outcome of one evaluator pass.
type Verdict struct {
	Signal string // "" when nothing fired
	Exit   bool   // false for guaranteed_win: hold to settlement
}

// TradeView is the per-cycle state an open trade is judged against.
type TradeView struct {
	Side     types.Side
	Range    types.TempRange
	EntryAsk float64

	Bid float64 // current sell-side quote for the held side
	Ask float64

	Corrected float64 // corrected model probability of the held side
	ExitFee   float64 // per-share fee, in dollars, for selling at Bid

	// SettleHigh is the conservative high the settling source will report:
	// the station reading for single-source platforms, the lower of the
	// two feeds when they diverge. Nil before the first report.
	SettleHigh *float64

	// ExceededHigh is the high used to declare a range ceiling exceeded:
	// the WU daily high for WU-settled trades, the running station high
	// otherwise.
	ExceededHigh *float64

	// EdgeBypassHolds mirrors the entry-time calibration confirmation:
	// buckets that vouched for the entry also veto the edge_gone exit.
	EdgeBypassHolds bool
}

// EvaluateSignals runs the evaluators in priority order.
func EvaluateSignals(v TradeView, cfg config.MonitorConfig) Verdict {
	if lockedFor(v, v.Side) {
		// Selling a locked win into a near-settlement bid trades pennies of
		// upside for zero residual risk, so take_profit still gets a look.
		if takeProfit(v, cfg.TakeProfitTiers) {
			return Verdict{Signal: SignalTakeProfit, Exit: true}
		}
		return Verdict{Signal: SignalGuaranteedWin, Exit: false}
	}
	if lockedAgainst(v) {
		return Verdict{Signal: SignalGuaranteedLoss, Exit: true}
	}
	if takeProfit(v, cfg.TakeProfitTiers) {
		return Verdict{Signal: SignalTakeProfit, Exit: true}
	}
	if edgeGone(v, cfg.EdgeGoneBuffer) {
		return Verdict{Signal: SignalEdgeGone, Exit: true}
	}
	return Verdict{}
}

// lockedFor reports whether the observed high has already decided the
// trade in favor of side.
func lockedFor(v TradeView, side types.Side) bool {
	if v.SettleHigh == nil {
		return false
	}
	high := *v.SettleHigh
	if side == types.SideNo {
		return v.Range.Max != nil && high > *v.Range.Max
	}
	// YES locks only on an open-topped range; a bounded bracket can still
	// be overshot.
	return v.Range.Max == nil && v.Range.Min != nil && high >= *v.Range.Min
}

// lockedAgainst reports a dead position: the ceiling was exceeded against
// a YES bracket, or the floor of an open-topped range was reached against
// a NO.
func lockedAgainst(v TradeView) bool {
	if v.Side == types.SideYes {
		return v.ExceededHigh != nil && v.Range.Max != nil &&
			*v.ExceededHigh > *v.Range.Max
	}
	high := v.SettleHigh
	if high == nil {
		return false
	}
	return v.Range.Max == nil && v.Range.Min != nil && *high >= *v.Range.Min
}

// takeProfit fires on the first tier the bid clears, guarded so a sale
// never exits below entry after fees.
func takeProfit(v TradeView, tiers []config.TakeProfitTier) bool {
	if v.Bid <= 0 || v.Bid-v.ExitFee <= v.EntryAsk {
		return false
	}
	gain := 0.0
	if v.EntryAsk > 0 {
		gain = (v.Bid - v.EntryAsk) / v.EntryAsk
	}
	for _, tier := range tiers {
		if v.Bid >= tier.MinBid && gain >= tier.MinGainPct {
			return true
		}
	}
	return false
}

// edgeGone fires when the model's view of the position has fallen
// materially below what we paid for it. The comparison anchors on the
// entry ask, not the current bid: when bid and model collapse together
// the bid stops being a floor and a dead position would sit unexited.
// Calibration-confirmed entries are exempt: the bucket's empirical record
// outranks the model that already disagreed with it at entry.
func edgeGone(v TradeView, buffer float64) bool {
	if v.EdgeBypassHolds {
		return false
	}
	if v.Bid <= 0 {
		return false
	}
	return v.Corrected < v.EntryAsk-buffer
}
