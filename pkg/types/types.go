// Package types holds the domain vocabulary shared across the engine:
// platforms, sides, ranges and market snapshots.
package types

import (
	"fmt"
	"math"
	"time"
)

// Platform tags which market venue a market or trade belongs to.
type Platform string

const (
	PlatformKalshi     Platform = "kalshi"
	PlatformPolymarket Platform = "polymarket"
)

// Side of a contract.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// RangeType distinguishes two-sided brackets from threshold contracts.
type RangeType string

const (
	RangeBounded   RangeType = "bounded"
	RangeUnbounded RangeType = "unbounded"
)

// Unit is the temperature unit a market settles in.
type Unit string

const (
	UnitF Unit = "F"
	UnitC Unit = "C"
)

// EntryReason records why a trade was opened.
type EntryReason string

const (
	ReasonEdge             EntryReason = "edge"
	ReasonGuaranteedWin    EntryReason = "guaranteed_win"
	ReasonGuaranteedWinPWS EntryReason = "guaranteed_win_pws"
)

// TempRange is a contract range with the continuity correction already
// applied: platforms settle on whole-integer temperatures, so a "34-35"
// label covers [33.5, 35.5]. A nil Min or Max marks the unbounded side.
type TempRange struct {
	Min  *float64
	Max  *float64
	Type RangeType
	Unit Unit
	Name string // canonical label, e.g. "34-35" or "36 or above"
}

// Contains reports whether a settled temperature falls inside the range.
func (r TempRange) Contains(temp float64) bool {
	if r.Min != nil && temp < *r.Min {
		return false
	}
	if r.Max != nil && temp > *r.Max {
		return false
	}
	return true
}

// Width returns the range width, or +Inf for unbounded ranges.
func (r TempRange) Width() float64 {
	if r.Min == nil || r.Max == nil {
		return math.Inf(1)
	}
	return *r.Max - *r.Min
}

// EdgeDistances returns signed distances from temp to the near and far
// range boundary. Negative means temp is inside past that boundary. For
// unbounded ranges the missing side reports +Inf.
func (r TempRange) EdgeDistances(temp float64) (near, far float64) {
	dMin, dMax := math.Inf(1), math.Inf(1)
	if r.Min != nil {
		dMin = *r.Min - temp
	}
	if r.Max != nil {
		dMax = temp - *r.Max
	}
	if math.Abs(dMin) <= math.Abs(dMax) {
		return dMin, dMax
	}
	return dMax, dMin
}

// Key returns a stable identity string for dedup maps.
func (r TempRange) Key() string {
	return r.Name
}

// Market is a point-in-time snapshot of one tradable range on a platform.
// Markets are observed, never mutated.
type Market struct {
	Platform   Platform
	ID         string
	SeriesID   string
	City       string // city code
	TargetDate string // city-local date, YYYY-MM-DD
	Range      TempRange
	RawLabel   string

	BestBid  float64
	BestAsk  float64
	Spread   float64
	BidDepth float64
	AskDepth float64
	Volume   float64

	CloseTime time.Time
}

// MidPrice returns the bid/ask midpoint, or 0 when unquoted.
func (m Market) MidPrice() float64 {
	if m.BestBid <= 0 && m.BestAsk <= 0 {
		return 0
	}
	return (m.BestBid + m.BestAsk) / 2
}

// DedupKey identifies a position slot: one trade per
// (city, date, platform, range, side).
func DedupKey(city, date string, platform Platform, rangeName string, side Side) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", city, date, platform, rangeName, side)
}

// ForecastKey keys lookup maps by city and city-local date.
func ForecastKey(city, date string) string {
	return city + "|" + date
}
