package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"weatheredge/internal/config"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

func testFilters() config.FilterConfig {
	return config.Default().Filters
}

func testCal() config.CalibrationConfig {
	return config.Default().Calibration
}

func bounded(lo, hi float64) types.TempRange {
	return types.TempRange{Min: &lo, Max: &hi, Type: types.RangeBounded, Unit: types.UnitF}
}

// cleanInput passes every filter: YES at a fair ask with edge to spare.
func cleanInput() EvalInput {
	return EvalInput{
		Side:              types.SideYes,
		Range:             bounded(69.5, 71.5),
		Platform:          types.PlatformKalshi,
		Ask:               0.40,
		Bid:               0.36,
		Spread:            0.04,
		RawProb:           0.52,
		Corrected:         0.50,
		Edge:              0.10,
		HoursToResolution: 8,
		CityMAE:           1.8,
		Sigma:             2.0,
		Divergence:        0.5,
		PlatformEnabled:   true,
	}
}

func TestEvaluateCleanPass(t *testing.T) {
	reason, _ := Evaluate(cleanInput(), testFilters(), testCal(), 2.5)
	assert.Empty(t, reason)
}

func TestEvaluateChainOrder(t *testing.T) {
	// Each case breaks one filter on top of an otherwise clean input; a
	// later case also breaks the earlier filters to pin the ordering.
	cases := []struct {
		name   string
		mutate func(*EvalInput)
		want   string
	}{
		{"platform disabled", func(in *EvalInput) { in.PlatformEnabled = false }, FilterPlatformDisabled},
		{"city blocked", func(in *EvalInput) { in.CityBlocked = true }, FilterKalshiCityBlocked},
		{"ghost market", func(in *EvalInput) { in.Ask, in.Bid = 0, 0 }, FilterGhostMarket},
		{"min hours", func(in *EvalInput) { in.HoursToResolution = 1 }, FilterMinHours},
		{"mae gate", func(in *EvalInput) { in.CityMAE = 3.0 }, FilterCityMAEGate},
		{"high spread", func(in *EvalInput) { in.Spread = 0.20 }, FilterHighSpread},
		{"spread pct", func(in *EvalInput) { in.Ask, in.Spread = 0.10, 0.08 }, FilterSpreadPct},
		{"std range ratio", func(in *EvalInput) { in.Sigma = 6.0 }, FilterStdRangeRatio},
		{"model market ratio", func(in *EvalInput) { in.Ask, in.RawProb = 0.10, 0.52 }, FilterModelMarketRatio},
		{"divergence", func(in *EvalInput) { in.Divergence = 4.0 }, FilterMarketDivergence},
		{"low edge", func(in *EvalInput) { in.Edge = 0.02 }, FilterLowEdge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := cleanInput()
			tc.mutate(&in)
			reason, _ := Evaluate(in, testFilters(), testCal(), 2.5)
			assert.Equal(t, tc.want, reason)
		})
	}

	// Disabled platform wins over everything downstream.
	in := cleanInput()
	in.PlatformEnabled = false
	in.Ask, in.Bid = 0, 0
	in.Edge = -1
	reason, _ := Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Equal(t, FilterPlatformDisabled, reason)
}

func TestEvaluateNoAskWindow(t *testing.T) {
	in := cleanInput()
	in.Side = types.SideNo
	in.Ask = 0.25
	reason, _ := Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Empty(t, reason)

	in.Ask = 0.10
	reason, _ = Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Equal(t, FilterNoAskFloor, reason)

	in.Ask = 0.40
	reason, _ = Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Equal(t, FilterNoAskCap, reason)
}

func TestEvaluateAdjacentNoBlocked(t *testing.T) {
	in := cleanInput()
	in.Side = types.SideNo
	in.Ask = 0.25
	in.AdjacentToYes = true
	reason, _ := Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Equal(t, FilterAdjacentNo, reason)

	// YES candidates never trip the adjacency veto.
	in = cleanInput()
	in.AdjacentToYes = true
	reason, _ = Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Empty(t, reason)
}

func TestEvaluateObservationBoundary(t *testing.T) {
	in := cleanInput() // range ceiling 71.5
	high := 70.8
	in.ObservationHigh = &high
	reason, _ := Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Equal(t, FilterObsBoundary, reason)

	// Still a degree of room: passes.
	high = 70.4
	reason, _ = Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Empty(t, reason)
}

func TestEvaluateStdRangeRatioYesBoundedOnly(t *testing.T) {
	in := cleanInput()
	in.Sigma = 6.0 // ratio 3.0 over a 2-degree range, above the 2.5 cap

	in.Side = types.SideNo
	in.Ask = 0.25
	reason, _ := Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Empty(t, reason, "ratio gate is YES-only")

	in = cleanInput()
	in.Sigma = 6.0
	in.Range = types.TempRange{Min: ptr(69.5), Type: types.RangeUnbounded, Unit: types.UnitF}
	reason, _ = Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Empty(t, reason, "ratio gate is bounded-only")
}

func TestEdgeBypassUnlocksRatioFilter(t *testing.T) {
	in := cleanInput()
	in.Ask = 0.10
	in.RawProb = 0.52 // 5.2x the ask, over the 3.0 ratio cap
	in.Corrected = 0.50
	in.Edge = 0.40

	reason, confirmed := Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Equal(t, FilterModelMarketRatio, reason)
	assert.False(t, confirmed)

	// A deep bucket whose empirical win rate clears the ask by 3pp
	// vouches for the entry.
	in.CalBucket = &storage.MarketCalibrationBucket{
		N:                40,
		EmpiricalWinRate: storage.Numeric(0.45),
		TrueEdge:         storage.Numeric(0.12),
	}
	reason, confirmed = Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Empty(t, reason)
	assert.True(t, confirmed)
}

func TestEdgeBypassPreconditions(t *testing.T) {
	cal := testCal()
	bucket := &storage.MarketCalibrationBucket{
		N:                40,
		EmpiricalWinRate: storage.Numeric(0.45),
	}

	assert.True(t, EdgeBypass(bucket, 0.10, 0.05, cal))
	assert.False(t, EdgeBypass(nil, 0.10, 0.05, cal), "no bucket")
	assert.False(t, EdgeBypass(bucket, 0.10, -0.01, cal), "negative raw edge")
	assert.False(t, EdgeBypass(bucket, 0.43, 0.05, cal), "empirical edge under 3pp")

	thin := *bucket
	thin.N = 10
	assert.False(t, EdgeBypass(&thin, 0.10, 0.05, cal), "thin bucket")
}

func TestCalBlocksEdge(t *testing.T) {
	in := cleanInput()
	in.CalBucket = &storage.MarketCalibrationBucket{
		N:                25,
		EmpiricalWinRate: storage.Numeric(0.30),
		TrueEdge:         storage.Numeric(-0.05),
	}
	reason, _ := Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Equal(t, FilterCalBlocksEdge, reason)

	// Below the blocking threshold the bucket is advisory only.
	in.CalBucket.N = 10
	reason, _ = Evaluate(in, testFilters(), testCal(), 2.5)
	assert.Empty(t, reason)
}

func TestLeadTimeBucket(t *testing.T) {
	assert.Equal(t, "0-6h", LeadTimeBucket(2))
	assert.Equal(t, "6-24h", LeadTimeBucket(6))
	assert.Equal(t, "24-72h", LeadTimeBucket(48))
	assert.Equal(t, "72h+", LeadTimeBucket(100))
}

func TestPriceBucket(t *testing.T) {
	assert.Equal(t, "0.00-0.10", PriceBucket(0.05))
	assert.Equal(t, "0.10-0.25", PriceBucket(0.10))
	assert.Equal(t, "0.25-0.50", PriceBucket(0.40))
	assert.Equal(t, "0.50-0.75", PriceBucket(0.60))
	assert.Equal(t, "0.75-0.90", PriceBucket(0.80))
	assert.Equal(t, "0.90-1.00", PriceBucket(0.95))
}

func TestMarketImpliedMean(t *testing.T) {
	mk := func(lo, hi, bid, ask float64) types.Market {
		return types.Market{Range: bounded(lo, hi), BestBid: bid, BestAsk: ask}
	}
	markets := []types.Market{
		mk(67.5, 69.5, 0.08, 0.12), // mid 0.10, center 68.5
		mk(69.5, 71.5, 0.55, 0.65), // mid 0.60, center 70.5
		mk(71.5, 73.5, 0.25, 0.35), // mid 0.30, center 72.5
	}
	got := MarketImpliedMean(markets)
	want := (0.10*68.5 + 0.60*70.5 + 0.30*72.5) / 1.0
	assert.InDelta(t, want, got, 1e-9)
}

func TestMarketImpliedMeanSkipsUnboundedAndUnquoted(t *testing.T) {
	markets := []types.Market{
		{Range: types.TempRange{Min: ptr(75.5), Type: types.RangeUnbounded}, BestBid: 0.40, BestAsk: 0.50},
		{Range: bounded(69.5, 71.5)}, // empty book
	}
	assert.Zero(t, MarketImpliedMean(markets))
}
