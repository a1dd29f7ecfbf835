package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

func TestLockedSideNoOnExceededCeiling(t *testing.T) {
	r := bounded(69.5, 71.5)

	side, locked := LockedSide(r, 72.0, 0)
	require.True(t, locked)
	assert.Equal(t, types.SideNo, side)

	// Inside the range nothing is decided: the high can still climb out.
	_, locked = LockedSide(r, 70.0, 0)
	assert.False(t, locked)
}

func TestLockedSideYesOnlyForOpenTop(t *testing.T) {
	above := types.TempRange{Min: ptr(75.5), Type: types.RangeUnbounded, Unit: types.UnitF}

	side, locked := LockedSide(above, 75.5, 0)
	require.True(t, locked)
	assert.Equal(t, types.SideYes, side)

	// A bounded range never locks YES even with the high inside it.
	_, locked = LockedSide(bounded(69.5, 71.5), 71.0, 0)
	assert.False(t, locked)
}

func TestLockedSideGap(t *testing.T) {
	r := bounded(69.5, 71.5)

	// 71.8 clears the ceiling but not a 0.5 degree safety gap.
	_, locked := LockedSide(r, 71.8, 0.5)
	assert.False(t, locked)

	side, locked := LockedSide(r, 72.0, 0.5)
	require.True(t, locked)
	assert.Equal(t, types.SideNo, side)
}

func TestLockedSideBelowThreshold(t *testing.T) {
	// "73 or below" parses to Max 73.5; exceeding it locks NO.
	below := types.TempRange{Max: ptr(73.5), Type: types.RangeUnbounded, Unit: types.UnitF}

	side, locked := LockedSide(below, 74.0, 0)
	require.True(t, locked)
	assert.Equal(t, types.SideNo, side)
}

func TestAdjacentToHeldYes(t *testing.T) {
	open := []storage.Trade{{
		City:       "LAX",
		TargetDate: storage.Date("2026-08-24"),
		Side:       types.SideYes,
		RangeMin:   storage.FromPtr(ptr(73.5)),
		RangeMax:   storage.FromPtr(ptr(75.5)),
	}}

	// NO bracket entirely below the held YES floor: blocked.
	assert.True(t, AdjacentToHeldYes(open, "LAX", "2026-08-24", bounded(69.5, 71.5)))

	// NO bracket above the held YES range coexists fine.
	assert.False(t, AdjacentToHeldYes(open, "LAX", "2026-08-24", bounded(77.5, 79.5)))

	// Different city or date: no interaction.
	assert.False(t, AdjacentToHeldYes(open, "NYC", "2026-08-24", bounded(69.5, 71.5)))
	assert.False(t, AdjacentToHeldYes(open, "LAX", "2026-08-25", bounded(69.5, 71.5)))
}

func TestDedupLowestAsk(t *testing.T) {
	mk := func(platform types.Platform, ask float64) Candidate {
		return Candidate{
			Market: types.Market{
				Platform:   platform,
				City:       "MIA",
				TargetDate: "2026-08-24",
				Range:      types.TempRange{Name: "89-90"},
			},
			Side: types.SideNo,
			Ask:  ask,
		}
	}

	out := DedupLowestAsk([]Candidate{
		mk(types.PlatformKalshi, 0.62),
		mk(types.PlatformPolymarket, 0.55),
	})
	require.Len(t, out, 1)
	assert.Equal(t, types.PlatformPolymarket, out[0].Market.Platform)
	assert.Equal(t, 0.55, out[0].Ask)

	// Distinct ranges survive.
	other := mk(types.PlatformKalshi, 0.70)
	other.Market.Range.Name = "91-92"
	out = DedupLowestAsk([]Candidate{mk(types.PlatformKalshi, 0.62), other})
	assert.Len(t, out, 2)
}
