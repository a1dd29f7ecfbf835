package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

func ptr(f float64) *float64 { return &f }

func laCity(t *testing.T) config.CityConfig {
	t.Helper()
	for _, c := range config.DefaultCities() {
		if c.Code == "LAX" {
			return c
		}
	}
	t.Fatal("LAX missing from registry")
	return config.CityConfig{}
}

func TestSettleablePolymarketAtLocalMidnight(t *testing.T) {
	city := laCity(t)
	loc := city.Location()

	// 23:30 on the target day: not final.
	now := time.Date(2026, 8, 24, 23, 30, 0, 0, loc)
	assert.False(t, Settleable(city, types.PlatformPolymarket, "2026-08-24", now))

	// 00:05 the next local day: final.
	now = time.Date(2026, 8, 25, 0, 5, 0, 0, loc)
	assert.True(t, Settleable(city, types.PlatformPolymarket, "2026-08-24", now))
}

func TestSettleableKalshiWaitsForMorningReport(t *testing.T) {
	city := laCity(t)
	loc := city.Location()

	// Next-day 06:00 local: the climatological report is not out yet.
	now := time.Date(2026, 8, 25, 6, 0, 0, 0, loc)
	assert.False(t, Settleable(city, types.PlatformKalshi, "2026-08-24", now))

	now = time.Date(2026, 8, 25, 7, 0, 0, 0, loc)
	assert.True(t, Settleable(city, types.PlatformKalshi, "2026-08-24", now))
}

func TestSettleableUsesCityClock(t *testing.T) {
	city := laCity(t)

	// Midnight UTC on the 25th is still the evening of the 24th in LA.
	now := time.Date(2026, 8, 25, 0, 30, 0, 0, time.UTC)
	assert.False(t, Settleable(city, types.PlatformPolymarket, "2026-08-24", now))
}

func TestTradeWon(t *testing.T) {
	r := types.TempRange{Min: ptr(69.5), Max: ptr(71.5), Type: types.RangeBounded}

	assert.True(t, TradeWon(r, types.SideYes, 70))
	assert.False(t, TradeWon(r, types.SideYes, 72))
	assert.True(t, TradeWon(r, types.SideNo, 72))
	assert.False(t, TradeWon(r, types.SideNo, 70))

	above := types.TempRange{Min: ptr(75.5), Type: types.RangeUnbounded}
	assert.True(t, TradeWon(above, types.SideYes, 76))
	assert.True(t, TradeWon(above, types.SideNo, 75))
}

func TestTradePnL(t *testing.T) {
	// 100 shares at $0.40 with $1.68 fees: win pays 100 - 40 - 1.68.
	assert.InDelta(t, 58.32, TradePnL(100, 40, 1.68, true), 1e-9)
	assert.InDelta(t, -41.68, TradePnL(100, 40, 1.68, false), 1e-9)
}
