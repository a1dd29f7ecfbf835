// Package executor turns filter-clean candidates into recorded paper
// trades, enforcing bankroll, volume and dedup gates the scanner cannot
// see.
package executor

import (
	"math"

	"weatheredge/internal/numerics"
)

// KellyDollars converts a Kelly fraction into a dollar budget against the
// side's bankroll, capped at the per-trade ceiling.
func KellyDollars(bankroll, kelly, maxPct float64) float64 {
	if bankroll <= 0 || kelly <= 0 {
		return 0
	}
	frac := math.Min(kelly, maxPct)
	return bankroll * frac
}

// Shares converts a dollar budget into whole contracts at the effective
// per-share cost (ask plus entry fee).
func Shares(dollars, effectiveCost float64) int {
	if effectiveCost <= 0 || dollars <= 0 {
		return 0
	}
	return int(math.Floor(dollars / effectiveCost))
}

// CityFactor scales station-confirmed sizing by how much correction the
// city's PWS network needs: a clean network sizes at 1.0, a heavily
// biased one decays toward the confidence floor.
func CityFactor(avgCorrection, maxCorrection, floor float64) float64 {
	if maxCorrection <= 0 {
		return floor
	}
	f := (maxCorrection - avgCorrection) / maxCorrection
	return numerics.Clamp(f, floor, 1)
}

// TimeFactor decays station-confirmed sizing through the afternoon:
// full size until fullUntil (city-local hour), linear decay to the floor
// at reducedAt. Late entries race a market that has already repriced.
func TimeFactor(localHour, fullUntil, reducedAt, floor float64) float64 {
	switch {
	case reducedAt <= fullUntil || localHour <= fullUntil:
		return 1
	case localHour >= reducedAt:
		return floor
	}
	frac := (localHour - fullUntil) / (reducedAt - fullUntil)
	return 1 - frac*(1-floor)
}
