package platform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"weatheredge/pkg/types"
)

// Label grammars. Kalshi titles hyphenate ("34-35°F", en-dash in some
// series); Polymarket writes "34° to 35°". Unbounded contracts read
// "above 36" / "36°F or above" and "33 or below".
var (
	reBounded = regexp.MustCompile(`^(-?\d+)\s*°?\s*[FC]?\s*(?:-|–|—|\s+to\s+)\s*(-?\d+)\s*°?\s*[FC]?$`)
	reAbove   = regexp.MustCompile(`^(?:above\s+(-?\d+)\s*°?\s*[FC]?|(-?\d+)\s*°?\s*[FC]?\s+or\s+(?:above|higher))$`)
	reBelow   = regexp.MustCompile(`^(?:below\s+(-?\d+)\s*°?\s*[FC]?|(-?\d+)\s*°?\s*[FC]?\s+or\s+(?:below|lower))$`)
)

// ParseRange parses a market label into a typed range, applying the
// continuity correction exactly once: settlement is whole-integer, so a
// parsed boundary B widens to B±0.5. "34-35" covers [33.5, 35.5].
func ParseRange(label string, unit types.Unit) (types.TempRange, error) {
	s := strings.TrimSpace(strings.ToLower(label))
	s = strings.ReplaceAll(s, "f", "F")
	s = strings.ReplaceAll(s, "c", "C")

	if m := reBounded.FindStringSubmatch(s); m != nil {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil || hi < lo {
			return types.TempRange{}, fmt.Errorf("parse range %q: bad bounds", label)
		}
		min := lo - 0.5
		max := hi + 0.5
		return types.TempRange{
			Min:  &min,
			Max:  &max,
			Type: types.RangeBounded,
			Unit: unit,
			Name: fmt.Sprintf("%.0f-%.0f", lo, hi),
		}, nil
	}

	if m := reAbove.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(firstGroup(m), 64)
		if err != nil {
			return types.TempRange{}, fmt.Errorf("parse range %q: %w", label, err)
		}
		min := v - 0.5
		return types.TempRange{
			Min:  &min,
			Type: types.RangeUnbounded,
			Unit: unit,
			Name: fmt.Sprintf("%.0f or above", v),
		}, nil
	}

	if m := reBelow.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(firstGroup(m), 64)
		if err != nil {
			return types.TempRange{}, fmt.Errorf("parse range %q: %w", label, err)
		}
		max := v + 0.5
		return types.TempRange{
			Max:  &max,
			Type: types.RangeUnbounded,
			Unit: unit,
			Name: fmt.Sprintf("%.0f or below", v),
		}, nil
	}

	return types.TempRange{}, fmt.Errorf("parse range: unrecognized label %q", label)
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// FormatLabel renders a parsed range back into platform house style,
// undoing the continuity correction.
func FormatLabel(r types.TempRange, platform types.Platform) string {
	unit := string(r.Unit)
	switch {
	case r.Min != nil && r.Max != nil:
		lo := *r.Min + 0.5
		hi := *r.Max - 0.5
		if platform == types.PlatformPolymarket {
			return fmt.Sprintf("%.0f° to %.0f°", lo, hi)
		}
		return fmt.Sprintf("%.0f-%.0f°%s", lo, hi, unit)
	case r.Min != nil:
		return fmt.Sprintf("%.0f°%s or above", *r.Min+0.5, unit)
	case r.Max != nil:
		return fmt.Sprintf("%.0f°%s or below", *r.Max-0.5, unit)
	}
	return r.Name
}

// ParseKalshiTicker extracts the range from a bracket ticker suffix:
// B60.5 means the 60-61 bracket; T63 is a threshold whose direction comes
// from the market title.
func ParseKalshiTicker(ticker, title string, unit types.Unit) (types.TempRange, bool) {
	parts := strings.Split(ticker, "-")
	if len(parts) < 3 {
		return types.TempRange{}, false
	}
	spec := parts[len(parts)-1]

	if strings.HasPrefix(spec, "B") {
		mid, err := strconv.ParseFloat(spec[1:], 64)
		if err != nil {
			return types.TempRange{}, false
		}
		// B60.5 labels the 60-61 bracket; correction widens it to [59.5, 61.5].
		lo := mid - 0.5
		hi := mid + 0.5
		min := lo - 0.5
		max := hi + 0.5
		return types.TempRange{
			Min:  &min,
			Max:  &max,
			Type: types.RangeBounded,
			Unit: unit,
			Name: fmt.Sprintf("%.0f-%.0f", lo, hi),
		}, true
	}

	if strings.HasPrefix(spec, "T") {
		v, err := strconv.ParseFloat(spec[1:], 64)
		if err != nil {
			return types.TempRange{}, false
		}
		lowered := strings.ToLower(title)
		if strings.Contains(lowered, "above") || strings.Contains(lowered, "higher") || strings.Contains(lowered, ">") {
			min := v - 0.5
			return types.TempRange{
				Min:  &min,
				Type: types.RangeUnbounded,
				Unit: unit,
				Name: fmt.Sprintf("%.0f or above", v),
			}, true
		}
		max := v + 0.5
		return types.TempRange{
			Max:  &max,
			Type: types.RangeUnbounded,
			Unit: unit,
			Name: fmt.Sprintf("%.0f or below", v),
		}, true
	}

	return types.TempRange{}, false
}
