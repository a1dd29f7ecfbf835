package executor

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/rs/zerolog"

	"weatheredge/internal/config"
	"weatheredge/internal/platform"
	"weatheredge/internal/scanner"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

// Block reasons recorded on opportunities the executor vetoes.
const (
	BlockDuplicate         = "duplicate_position"
	BlockAdjacentNo        = "adjacent_no"
	BlockVolumeHardReject  = "volume_hard_reject"
	BlockBankrollExhausted = "bankroll_exhausted"
	BlockNoDateCap         = "no_date_cap"
	BlockBelowMinBet       = "below_min_bet"
	BlockBankrollInvalid   = "bankroll_invalid"
)

// Notifier receives human-facing trade events. Satisfied by alert.Bot.
type Notifier interface {
	Notify(format string, args ...interface{})
}

// Executor records paper entries for candidates that survive its gates.
type Executor struct {
	cfg      *config.Config
	store    *storage.Store
	adapters map[types.Platform]platform.Adapter
	notify   Notifier
	log      zerolog.Logger
}

// New builds the executor.
func New(cfg *config.Config, store *storage.Store, adapters []platform.Adapter, notify Notifier, log zerolog.Logger) *Executor {
	byPlatform := make(map[types.Platform]platform.Adapter, len(adapters))
	for _, a := range adapters {
		byPlatform[a.Platform()] = a
	}
	return &Executor{
		cfg:      cfg,
		store:    store,
		adapters: byPlatform,
		notify:   notify,
		log:      log.With().Str("component", "executor").Logger(),
	}
}

// cycleState reconstructs deployed capital from open rows at the start of
// each pass, then tracks this pass's own entries so candidates within one
// cycle cannot double-spend.
type cycleState struct {
	yesDeployed float64
	noDeployed  float64
	gwDeployed  float64
	pwsDeployed float64
	noByDate    map[string]float64
	submitted   map[string]bool
	open        []storage.Trade
}

func (e *Executor) loadState(ctx context.Context) (*cycleState, error) {
	yes, no, err := e.store.OpenCostBySide(ctx)
	if err != nil {
		return nil, err
	}
	open, err := e.store.OpenTrades(ctx)
	if err != nil {
		return nil, err
	}
	gw, err := e.store.OpenCostByReason(ctx, types.ReasonGuaranteedWin)
	if err != nil {
		return nil, err
	}
	pws, err := e.store.OpenCostByReason(ctx, types.ReasonGuaranteedWinPWS)
	if err != nil {
		return nil, err
	}
	return &cycleState{
		yesDeployed: yes,
		noDeployed:  no,
		gwDeployed:  gw,
		pwsDeployed: pws,
		noByDate:    make(map[string]float64),
		submitted:   make(map[string]bool),
		open:        open,
	}, nil
}

// Execute runs every candidate through the gates and records entries.
// Returns the number of trades opened.
func (e *Executor) Execute(ctx context.Context, candidates []scanner.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	state, err := e.loadState(ctx)
	if err != nil {
		return 0, err
	}

	opened := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return opened, err
		}
		if e.enter(ctx, c, state) {
			opened++
		}
	}
	return opened, nil
}

// enter applies the gates to one candidate and records the trade.
func (e *Executor) enter(ctx context.Context, c scanner.Candidate, state *cycleState) bool {
	m := c.Market

	key := types.DedupKey(m.City, m.TargetDate, m.Platform, m.Range.Name, c.Side)
	if state.submitted[key] {
		e.block(ctx, c, BlockDuplicate)
		return false
	}
	active, err := e.store.HasActiveTrade(ctx, m.City, m.TargetDate, m.Platform, m.Range.Name, c.Side)
	if err != nil {
		e.log.Error().Err(err).Str("market", m.ID).Msg("dedup check failed; skipping entry")
		return false
	}
	if active {
		state.submitted[key] = true
		e.block(ctx, c, BlockDuplicate)
		return false
	}

	// Last line of the adjacent-range defense: a conflicting YES may have
	// landed after the scanner's check, including earlier in this pass.
	if c.Side == types.SideNo && scanner.AdjacentToHeldYes(state.open, m.City, m.TargetDate, m.Range) {
		e.block(ctx, c, BlockAdjacentNo)
		return false
	}

	adapter := e.adapters[m.Platform]
	if adapter == nil {
		e.log.Error().Str("platform", string(m.Platform)).Msg("no adapter for platform")
		return false
	}
	effCost := platform.EffectiveCost(adapter, c.Ask)

	dollars, remaining := e.budget(ctx, c, state)
	if math.IsNaN(remaining) || math.IsInf(remaining, 0) {
		e.block(ctx, c, BlockBankrollInvalid)
		e.log.Error().Str("market", m.ID).Float64("remaining", remaining).
			Msg("bankroll reconstruction produced a non-finite value")
		if e.notify != nil {
			e.notify.Notify("bankroll state invalid; entries halted for %s %s", m.City, c.Side)
		}
		return false
	}
	if dollars <= 0 || remaining <= 0 {
		e.block(ctx, c, BlockBankrollExhausted)
		return false
	}
	dollars = math.Min(dollars, remaining)

	// NO entries also respect the per-date cap across platforms.
	if c.Side == types.SideNo {
		spent, err := e.store.OpenNoCostForDate(ctx, m.TargetDate)
		if err != nil {
			e.log.Error().Err(err).Msg("no-side date cost lookup failed; skipping entry")
			return false
		}
		room := e.cfg.Sizing.NoMaxPerDate - spent - state.noByDate[m.TargetDate]
		if room <= 0 {
			e.block(ctx, c, BlockNoDateCap)
			return false
		}
		dollars = math.Min(dollars, room)
	}

	// Thin books: reject outright past the hard threshold, otherwise cap
	// the position to a survivable share of printed volume.
	if m.Volume > 0 {
		if dollars > e.cfg.Sizing.HardRejectVolumePct*m.Volume {
			e.block(ctx, c, BlockVolumeHardReject)
			return false
		}
		dollars = math.Min(dollars, e.cfg.Sizing.MaxVolumePct*m.Volume)
	}

	shares := Shares(dollars, effCost)
	cost := float64(shares) * c.Ask
	if shares <= 0 || cost < e.cfg.Sizing.MinBet {
		e.block(ctx, c, BlockBelowMinBet)
		return false
	}
	fees := float64(shares) * adapter.EntryFee(c.Ask)

	trade := e.buildTrade(c, shares, cost, fees)
	if e.cfg.DryRun {
		e.log.Info().Str("market", m.ID).Str("side", string(c.Side)).
			Int("shares", shares).Float64("cost", cost).
			Msg("dry run: entry suppressed")
		return false
	}
	if err := e.store.InsertTrade(ctx, trade); err != nil {
		e.log.Error().Err(err).Str("market", m.ID).Msg("trade insert failed")
		return false
	}

	state.submitted[key] = true
	e.charge(c, state, cost+fees)
	if c.Side == types.SideNo {
		state.noByDate[m.TargetDate] += cost
	} else {
		// Later NO candidates in this pass must see the fresh YES.
		state.open = append(state.open, *trade)
	}

	e.log.Info().
		Str("city", m.City).
		Str("market", m.ID).
		Str("side", string(c.Side)).
		Str("reason", string(c.Reason)).
		Int("shares", shares).
		Float64("ask", c.Ask).
		Float64("cost", cost).
		Float64("edge", c.Edge).
		Msg("trade opened")
	if e.notify != nil {
		e.notify.Notify("ENTRY %s %s %s %s: %d @ %.2f (edge %.1f%%, %s)",
			m.City, m.TargetDate, m.Range.Name, c.Side, shares, c.Ask,
			c.Edge*100, c.Reason)
	}
	return true
}

// budget returns the dollar target and the bankroll headroom for the
// candidate's entry path.
func (e *Executor) budget(ctx context.Context, c scanner.Candidate, state *cycleState) (dollars, remaining float64) {
	sz := e.cfg.Sizing
	obs := e.cfg.ObsPath

	switch c.Reason {
	case types.ReasonGuaranteedWin:
		dollars = obs.GWBankroll * obs.GWFlatPct
		dollars = math.Min(dollars, obs.GWBankroll*obs.MaxBankrollPctGW)
		return dollars, obs.GWBankroll - state.gwDeployed

	case types.ReasonGuaranteedWinPWS:
		dollars = e.pwsDollars(ctx, c)
		return dollars, obs.PWS.Bankroll - state.pwsDeployed

	default:
		if c.Side == types.SideNo {
			return KellyDollars(sz.NoBankroll, c.Kelly, sz.MaxBankrollPct),
				sz.NoBankroll - state.noDeployed
		}
		return KellyDollars(sz.YesBankroll, c.Kelly, sz.MaxBankrollPct),
			sz.YesBankroll - state.yesDeployed
	}
}

// pwsDollars sizes a station-confirmed entry by network quality and, in
// time_factor mode, by the city-local clock.
func (e *Executor) pwsDollars(ctx context.Context, c scanner.Candidate) float64 {
	pws := e.cfg.ObsPath.PWS
	base := pws.Bankroll * pws.BasePct

	cityFactor := 1.0
	if city, ok := e.cfg.CityByCode(c.Market.City); ok {
		avg := e.avgCorrection(ctx, c.Market.City, c.Market.TargetDate)
		cityFactor = CityFactor(avg, pws.MaxAvgCorrectedError, pws.MinConfidenceFactor)

		if pws.SizingMode == "time_factor" {
			now := time.Now().In(city.Location())
			hour := float64(now.Hour()) + float64(now.Minute())/60
			return base * cityFactor * TimeFactor(hour, pws.TimeFullHours, pws.TimeReducedHours, pws.MinConfidenceFactor)
		}
	}
	// ask_factor mode: the book's own price is the confidence signal.
	return base * cityFactor * c.Ask
}

// avgCorrection is the mean absolute bias applied to the city's PWS
// readings today. Heavily corrected networks get smaller entries.
func (e *Executor) avgCorrection(ctx context.Context, city, date string) float64 {
	samples, err := e.store.RecentPWSSamples(ctx, city, date, 30)
	if err != nil || len(samples) == 0 {
		return e.cfg.ObsPath.PWS.MaxAvgCorrectedError // unknown network sizes at the floor
	}
	sum := 0.0
	for _, s := range samples {
		sum += math.Abs(s.StationBias.Float64())
	}
	return sum / float64(len(samples))
}

func (e *Executor) charge(c scanner.Candidate, state *cycleState, outlay float64) {
	switch c.Reason {
	case types.ReasonGuaranteedWin:
		state.gwDeployed += outlay
	case types.ReasonGuaranteedWinPWS:
		state.pwsDeployed += outlay
	default:
		if c.Side == types.SideNo {
			state.noDeployed += outlay
		} else {
			state.yesDeployed += outlay
		}
	}
}

func (e *Executor) block(ctx context.Context, c scanner.Candidate, reason string) {
	e.log.Debug().Str("market", c.Market.ID).Str("side", string(c.Side)).
		Str("reason", reason).Msg("entry blocked")
	if err := e.store.MarkExecutorBlocked(ctx, c.Market.ID, string(c.Side), reason); err != nil {
		e.log.Warn().Err(err).Str("market", c.Market.ID).Msg("blocked retag failed")
	}
}

func (e *Executor) buildTrade(c scanner.Candidate, shares int, cost, fees float64) *storage.Trade {
	m := c.Market
	t := &storage.Trade{
		City:       m.City,
		TargetDate: storage.Date(m.TargetDate),
		Platform:   m.Platform,
		MarketID:   m.ID,
		RangeName:  m.Range.Name,
		RangeMin:   storage.FromPtr(m.Range.Min),
		RangeMax:   storage.FromPtr(m.Range.Max),
		RangeType:  string(m.Range.Type),
		Unit:       string(m.Range.Unit),
		Side:       c.Side,

		EntryAsk:    storage.Numeric(c.Ask),
		EntryBid:    storage.Numeric(c.Bid),
		EntrySpread: storage.Numeric(m.Spread),
		EntryVolume: storage.Numeric(m.Volume),

		Edge:           storage.FromPtr(&c.Edge),
		Kelly:          storage.FromPtr(&c.Kelly),
		Reason:         string(c.Reason),
		CalConfirmed:   c.CalConfirmed,
		LeadTimeBucket: sql.NullString{String: c.LeadBucket, Valid: c.LeadBucket != ""},
		PriceBucket:    sql.NullString{String: c.PriceBucket, Valid: c.PriceBucket != ""},

		Shares: shares,
		Cost:   storage.Numeric(cost),
		Fees:   storage.Numeric(fees),
	}
	if c.Forecast != nil {
		mean := c.Forecast.Mean(m.Platform)
		sigma := c.Forecast.Sigma
		t.ForecastTemp = storage.FromPtr(&mean)
		t.StdDev = storage.FromPtr(&sigma)
		t.ForecastConfidence = sql.NullString{String: string(c.Forecast.Confidence), Valid: true}
		t.Ensemble = storage.JSONMap(c.Forecast.Sources)
	}
	return t
}
