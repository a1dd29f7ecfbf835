package monitor

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"weatheredge/internal/config"
	"weatheredge/internal/forecast"
	"weatheredge/internal/platform"
	"weatheredge/internal/scanner"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

// Notifier receives exit events. Satisfied by alert.Bot.
type Notifier interface {
	Notify(format string, args ...interface{})
}

// Monitor re-evaluates open trades once per cycle.
type Monitor struct {
	cfg      *config.Config
	store    *storage.Store
	engine   *forecast.Engine
	adapters map[types.Platform]platform.Adapter
	notify   Notifier
	log      zerolog.Logger
}

// New builds the monitor.
func New(cfg *config.Config, store *storage.Store, engine *forecast.Engine, adapters []platform.Adapter, notify Notifier, log zerolog.Logger) *Monitor {
	byPlatform := make(map[types.Platform]platform.Adapter, len(adapters))
	for _, a := range adapters {
		byPlatform[a.Platform()] = a
	}
	return &Monitor{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		adapters: byPlatform,
		notify:   notify,
		log:      log.With().Str("component", "monitor").Logger(),
	}
}

// Cycle walks every open trade. Returns the number exited.
func (m *Monitor) Cycle(ctx context.Context, cal *scanner.CycleCalibration) (int, error) {
	trades, err := m.store.OpenTrades(ctx)
	if err != nil {
		return 0, err
	}
	if len(trades) == 0 {
		return 0, nil
	}

	books := m.fetchBooks(ctx, trades)
	exited := 0
	for i := range trades {
		t := &trades[i]
		if err := ctx.Err(); err != nil {
			return exited, err
		}
		if m.evaluateTrade(ctx, t, books, cal) {
			exited++
		}
	}
	return exited, nil
}

// fetchBooks loads one market snapshot per (city, platform) pair the open
// trades touch, keyed by market id.
func (m *Monitor) fetchBooks(ctx context.Context, trades []storage.Trade) map[string]types.Market {
	books := make(map[string]types.Market)
	fetched := make(map[string]bool)
	for _, t := range trades {
		fkey := t.City + "|" + t.TargetDate.String() + "|" + string(t.Platform)
		if fetched[fkey] {
			continue
		}
		fetched[fkey] = true

		city, ok := m.cfg.CityByCode(t.City)
		if !ok {
			continue
		}
		adapter := m.adapters[t.Platform]
		if adapter == nil {
			continue
		}
		markets, err := adapter.FetchMarkets(ctx, city, t.TargetDate.String())
		if err != nil {
			m.log.Warn().Err(err).Str("city", t.City).
				Str("platform", string(t.Platform)).Msg("monitor book fetch failed")
			continue
		}
		for _, mk := range markets {
			books[mk.ID] = mk
		}
	}
	return books
}

// evaluateTrade runs the signal chain over one trade. Returns true when
// the trade was exited.
func (m *Monitor) evaluateTrade(ctx context.Context, t *storage.Trade, books map[string]types.Market, cal *scanner.CycleCalibration) bool {
	city, ok := m.cfg.CityByCode(t.City)
	if !ok {
		return false
	}
	mk, haveBook := books[t.MarketID]

	bid, ask := 0.0, 0.0
	if haveBook {
		bid, ask = mk.BestBid, mk.BestAsk
		if t.Side == types.SideNo {
			bid, ask = platform.NoQuote(mk)
		}
	}

	corrected := m.correctedProb(ctx, city, t, cal)
	settleHigh, exceededHigh, obsHigh, wuHigh := m.highs(ctx, t)

	bypass := false
	if t.CalConfirmed && t.LeadTimeBucket.Valid && t.PriceBucket.Valid {
		if b, ok := cal.Market[storage.MarketCalKey(t.Platform, t.RangeType, t.LeadTimeBucket.String, t.PriceBucket.String)]; ok {
			bypass = scanner.EdgeBypass(&b, t.EntryAsk.Float64(), corrected-t.EntryAsk.Float64(), m.cfg.Calibration)
		}
	}

	adapter := m.adapters[t.Platform]
	exitFee := 0.0
	if adapter != nil {
		exitFee = adapter.EntryFee(bid)
	}

	view := TradeView{
		Side:            t.Side,
		Range:           t.Range(),
		EntryAsk:        t.EntryAsk.Float64(),
		Bid:             bid,
		Ask:             ask,
		Corrected:       corrected,
		ExitFee:         exitFee,
		SettleHigh:      settleHigh,
		ExceededHigh:    exceededHigh,
		EdgeBypassHolds: bypass,
	}
	verdict := EvaluateSignals(view, m.cfg.Monitor)

	snap := storage.EvaluatorSnapshot{
		At:              time.Now().UTC(),
		Bid:             bid,
		Ask:             ask,
		CorrectedProb:   corrected,
		ObservationHigh: obsHigh,
		WUHigh:          wuHigh,
	}
	if verdict.Signal != "" {
		snap.Signals = []string{verdict.Signal}
	}
	log := t.Evaluations.Append(snap, m.cfg.Monitor.MaxEvaluations)

	var maxPrice, minProb storage.NullNumeric
	if bid > 0 {
		maxPrice = storage.FromPtr(&bid)
	}
	if corrected > 0 {
		minProb = storage.FromPtr(&corrected)
	}
	if err := m.store.UpdateMonitorState(ctx, t.ID, maxPrice, minProb, log); err != nil {
		m.log.Warn().Err(err).Str("trade", t.ID).Msg("monitor state persist failed")
	}

	if !verdict.Exit {
		if verdict.Signal == SignalGuaranteedWin {
			m.log.Debug().Str("trade", t.ID).Msg("position locked; holding to settlement")
		}
		return false
	}
	if !m.cfg.Monitor.SignalActive(verdict.Signal) {
		m.log.Info().Str("trade", t.ID).Str("signal", verdict.Signal).
			Msg("log-only signal: exit suppressed")
		return false
	}
	if bid <= 0 {
		// Nothing to sell into; the resolver settles it later.
		m.log.Debug().Str("trade", t.ID).Str("signal", verdict.Signal).
			Msg("exit signal with empty book; holding")
		return false
	}

	proceeds := float64(t.Shares) * (bid - exitFee)
	pnl := proceeds - t.Cost.Float64() - t.Fees.Float64()

	won := sql.NullBool{}
	if verdict.Signal == SignalGuaranteedLoss {
		won = sql.NullBool{Bool: false, Valid: true}
	}
	err := m.store.ExitTrade(ctx, t.ID, verdict.Signal, bid, pnl, won,
		storage.NullNumeric{}, storage.FromPtr(obsHigh), storage.FromPtr(wuHigh))
	if err != nil {
		m.log.Error().Err(err).Str("trade", t.ID).Msg("exit failed")
		return false
	}

	m.log.Info().
		Str("city", t.City).
		Str("trade", t.ID).
		Str("signal", verdict.Signal).
		Float64("bid", bid).
		Float64("pnl", pnl).
		Msg("trade exited")
	if m.notify != nil {
		m.notify.Notify("EXIT %s %s %s %s: %s @ %.2f (pnl %+.2f)",
			t.City, t.TargetDate, t.RangeName, t.Side, verdict.Signal, bid, pnl)
	}
	return true
}

// correctedProb re-prices the held side with a fresh forecast. Falls back
// to the entry snapshot when the forecast engine degrades.
func (m *Monitor) correctedProb(ctx context.Context, city config.CityConfig, t *storage.Trade, cal *scanner.CycleCalibration) float64 {
	dist, err := m.engine.Forecast(ctx, city, t.TargetDate.String())
	if err != nil || dist.LowConfidence {
		if t.Edge.Valid {
			return t.EntryAsk.Float64() + t.Edge.Float64()
		}
		return t.EntryAsk.Float64()
	}
	raw := dist.Probability(t.Range(), t.Platform)
	if t.Side == types.SideNo {
		raw = 1 - raw
	}
	corrected, _ := cal.Model.Correct(raw, t.RangeType)
	return corrected
}

// highs assembles the platform-aware highs for the lock checks.
func (m *Monitor) highs(ctx context.Context, t *storage.Trade) (settle, exceeded, obs, wu *float64) {
	latest, err := m.store.LatestObservation(ctx, t.City, t.TargetDate.String())
	if err != nil || latest == nil {
		return nil, nil, nil, nil
	}
	adapter := m.adapters[t.Platform]
	settlesWU := adapter != nil && adapter.ResolutionSource() == "wu_historical"
	return SelectHighs(latest, settlesWU)
}

// SelectHighs picks the highs the lock checks judge a trade against. Only
// the source that settles the trade's platform counts: the cross-source
// running high folds PWS and WU reads that can overshoot the settlement
// station, and an overshoot on the exceeded side would exit a still-alive
// position at the worst possible price. NWS-settled trades therefore use
// the METAR-only station high for both checks; WU-settled trades use the
// WU feed, taking the lower of station and WU for the win side when the
// feeds diverge.
func SelectHighs(latest *storage.Observation, settlesWU bool) (settle, exceeded, obs, wu *float64) {
	running := latest.RunningHigh.Float64()
	obs = &running
	wu = latest.WUHigh.Ptr()
	station := latest.StationHigh.Ptr()

	if settlesWU {
		if wu != nil {
			v := *wu
			if station != nil && *station < v {
				v = *station
			}
			settle = &v
			exceeded = wu
		}
		// METAR-only: no settle-side evidence for a WU market.
		return settle, exceeded, obs, wu
	}

	settle = station
	exceeded = station
	return settle, exceeded, obs, wu
}
