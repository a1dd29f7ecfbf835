package scanner

import (
	"context"

	"github.com/rs/zerolog"

	"weatheredge/internal/config"
	"weatheredge/internal/observation"
	"weatheredge/internal/platform"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

// GWScanner is the fast path: when the running high crosses a whole-degree
// boundary it re-scans only the affected city looking for ranges the
// observation has already decided.
type GWScanner struct {
	cfg      *config.Config
	store    *storage.Store
	adapters []platform.Adapter
	log      zerolog.Logger
}

// NewGW builds the fast-path scanner.
func NewGW(cfg *config.Config, store *storage.Store, adapters []platform.Adapter, log zerolog.Logger) *GWScanner {
	return &GWScanner{
		cfg:      cfg,
		store:    store,
		adapters: adapters,
		log:      log.With().Str("component", "gw_scanner").Logger(),
	}
}

// LockedSide reports which side, if any, an observed high has decided.
// The high only ever rises, so exceeding a range ceiling locks NO, and
// reaching the floor of an open-topped range locks YES. A bounded range
// can never lock YES: the high can still climb past its ceiling.
func LockedSide(r types.TempRange, high, gap float64) (types.Side, bool) {
	if r.Max != nil && high >= *r.Max+gap {
		return types.SideNo, true
	}
	if r.Max == nil && r.Min != nil && high >= *r.Min+gap {
		return types.SideYes, true
	}
	return "", false
}

// FastScan evaluates boundary-crossing events against live books and
// returns guaranteed-win candidates, lowest ask per logical position.
func (g *GWScanner) FastScan(ctx context.Context, events []observation.PendingEvent) ([]Candidate, error) {
	if len(events) == 0 {
		return nil, nil
	}

	open, err := g.store.OpenTrades(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("open trades load failed; adjacent-range guard degraded")
	}

	var all []Candidate
	for _, ev := range events {
		city, ok := g.cfg.CityByCode(ev.City)
		if !ok {
			continue
		}
		for _, adapter := range g.adapters {
			markets, err := adapter.FetchMarkets(ctx, city, ev.TargetDate)
			if err != nil {
				g.log.Warn().Err(err).Str("city", ev.City).
					Str("platform", string(adapter.Platform())).Msg("gw market fetch failed")
				continue
			}
			settlesWU := adapter.ResolutionSource() == "wu_historical"
			for _, m := range markets {
				if c, ok := g.evaluateGW(ctx, city, m, ev, settlesWU, open); ok {
					all = append(all, c)
				}
			}
		}
	}
	return DedupLowestAsk(all), nil
}

// evaluateGW decides one market against one crossing event.
func (g *GWScanner) evaluateGW(ctx context.Context, city config.CityConfig, m types.Market, ev observation.PendingEvent, settlesWU bool, open []storage.Trade) (Candidate, bool) {
	obs := g.cfg.ObsPath

	// Pick the high the settling platform will actually see, and the
	// safety gap when we only have a non-settling source.
	var (
		high   float64
		gap    float64
		reason types.EntryReason
		dual   bool
	)
	switch {
	case ev.Source == "pws":
		// PWS readings never settle anything; they only enter through
		// the confirmed-median path with its own sizing.
		if !ev.PWSConfirmed || ev.PWSMedian == nil {
			return Candidate{}, false
		}
		high = *ev.PWSMedian
		gap = metarGap(obs, city.Unit)
		reason = types.ReasonGuaranteedWinPWS
	case settlesWU:
		reason = types.ReasonGuaranteedWin
		if ev.WUHigh != nil {
			high = *ev.WUHigh
			dual = ev.RunningHigh >= *ev.WUHigh
		} else {
			// METAR-only signal on a WU-settled market: WU's sub-hourly
			// feed can read differently, so demand a real gap.
			high = ev.RunningHigh
			gap = metarGap(obs, city.Unit)
		}
	default:
		reason = types.ReasonGuaranteedWin
		high = ev.RunningHigh
		dual = ev.WUHigh != nil && *ev.WUHigh >= ev.RunningHigh
	}

	side, locked := LockedSide(m.Range, high, gap)
	if !locked {
		return Candidate{}, false
	}

	ask, bid := m.BestAsk, m.BestBid
	if side == types.SideNo {
		bid, ask = platform.NoQuote(m)
	}
	if ask <= 0 || ask > obs.MaxAsk {
		return Candidate{}, false
	}
	if (1-ask)*100 < obs.MinMarginCents {
		return Candidate{}, false
	}
	// A locked contract still offered cheap means the book knows
	// something the stations don't. Dual-source confirmation relaxes
	// the floor, never removes it.
	minAsk := obs.MinAsk
	if dual {
		minAsk = obs.MinAskDualConfirm
	}
	if ask < minAsk {
		return Candidate{}, false
	}

	if side == types.SideNo && AdjacentToHeldYes(open, city.Code, ev.TargetDate, m.Range) {
		return Candidate{}, false
	}

	opp := &storage.Opportunity{
		City:       city.Code,
		TargetDate: storage.Date(ev.TargetDate),
		Platform:   m.Platform,
		MarketID:   m.ID,
		RangeName:  m.Range.Name,
		RangeMin:   storage.FromPtr(m.Range.Min),
		RangeMax:   storage.FromPtr(m.Range.Max),
		RangeType:  string(m.Range.Type),
		Side:       side,

		BestBid: storage.Numeric(bid),
		BestAsk: storage.Numeric(ask),
		Spread:  storage.Numeric(m.Spread),
		Volume:  storage.Numeric(m.Volume),

		RawProbability:       storage.Numeric(1),
		CorrectedProbability: storage.Numeric(1),
		Edge:                 storage.Numeric(1 - ask),
		ProbBucket:           "0.9-1.0",
		LeadTimeBucket:       LeadTimeBucket(0),
		PriceBucket:          PriceBucket(ask),

		Action: storage.ActionEntered,
	}
	if err := g.store.InsertOpportunity(ctx, opp); err != nil {
		g.log.Error().Err(err).Str("market", m.ID).Msg("gw opportunity insert failed")
	}

	g.log.Info().
		Str("city", city.Code).
		Str("market", m.ID).
		Str("side", string(side)).
		Float64("high", high).
		Float64("ask", ask).
		Str("reason", string(reason)).
		Msg("guaranteed-win candidate")

	return Candidate{
		Market:        m,
		Side:          side,
		Ask:           ask,
		Bid:           bid,
		RawProb:       1,
		CorrectedProb: 1,
		Edge:          1 - ask,
		Reason:        reason,
		CalConfirmed:  false,
		ProbBucket:    "0.9-1.0",
		LeadBucket:    LeadTimeBucket(0),
		PriceBucket:   PriceBucket(ask),
		OpportunityID: opp.ID,
	}, true
}

// AdjacentToHeldYes reports whether a NO range sits entirely below a held
// YES range for the same city and date. Winning that NO would require the
// high to stay under our own YES floor, so the two positions fight each
// other and the later one yields. The scanner, the fast path and the
// executor all apply this check, each against its own view of open trades:
// the windows between their reads are where a conflicting entry slips in.
func AdjacentToHeldYes(open []storage.Trade, city, date string, r types.TempRange) bool {
	if r.Max == nil {
		return false
	}
	for _, t := range open {
		if t.City != city || string(t.TargetDate) != date {
			continue
		}
		if t.Side != types.SideYes || !t.RangeMin.Valid {
			continue
		}
		if *r.Max <= t.RangeMin.Float64() {
			return true
		}
	}
	return false
}

// DedupLowestAsk collapses candidates for the same logical position
// (city, date, range, side) across platforms, keeping the cheapest entry.
func DedupLowestAsk(cands []Candidate) []Candidate {
	best := make(map[string]int, len(cands))
	var out []Candidate
	for _, c := range cands {
		key := types.DedupKey(c.Market.City, c.Market.TargetDate, "", c.Market.Range.Name, c.Side)
		if i, ok := best[key]; ok {
			if c.Ask < out[i].Ask {
				out[i] = c
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}
	return out
}

func metarGap(obs config.ObsPathConfig, unit types.Unit) float64 {
	if unit == types.UnitC {
		return obs.MetarOnlyMinGapC
	}
	return obs.MetarOnlyMinGapF
}
