// Package resolver settles finished markets against their authoritative
// sources, grades forecasts, and rebuilds the calibration tables the next
// cycle prices with.
package resolver

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"weatheredge/internal/config"
	"weatheredge/internal/numerics"
	"weatheredge/internal/observation"
	"weatheredge/internal/platform"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

// Notifier receives settlement events. Satisfied by alert.Bot.
type Notifier interface {
	Notify(format string, args ...interface{})
}

// Resolver drives the settlement pass.
type Resolver struct {
	cfg    *config.Config
	store  *storage.Store
	kalshi *platform.KalshiAdapter
	wu     *observation.WUClient
	notify Notifier
	log    zerolog.Logger
}

// New builds the resolver. kalshi may be nil when the platform is
// disabled; its markets then stay open until it returns.
func New(cfg *config.Config, store *storage.Store, kalshi *platform.KalshiAdapter, wu *observation.WUClient, notify Notifier, log zerolog.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		store:  store,
		kalshi: kalshi,
		wu:     wu,
		notify: notify,
		log:    log.With().Str("component", "resolver").Logger(),
	}
}

// Settleable reports whether a platform's settlement data is final for a
// city-local target date. Polymarket fixes the outcome at local midnight;
// Kalshi waits for the morning climatological report, taken as 07:00 the
// following local day.
func Settleable(city config.CityConfig, p types.Platform, targetDate string, now time.Time) bool {
	loc := city.Location()
	day, err := time.ParseInLocation("2006-01-02", targetDate, loc)
	if err != nil {
		return false
	}
	local := now.In(loc)
	switch p {
	case types.PlatformPolymarket:
		return !local.Before(day.Add(24 * time.Hour))
	case types.PlatformKalshi:
		return !local.Before(day.Add(31 * time.Hour))
	}
	return false
}

// Cycle runs one settlement pass. Re-runs are harmless: resolutions
// upsert, accuracy rows dedup, and trades resolve at most once.
func (r *Resolver) Cycle(ctx context.Context) error {
	now := time.Now()

	unresolved, err := r.store.UnresolvedMarkets(ctx, now.UTC().Format("2006-01-02"))
	if err != nil {
		return err
	}

	graded := make(map[string]float64) // city|date -> actual
	settled := 0
	for _, opp := range unresolved {
		if err := ctx.Err(); err != nil {
			return err
		}
		city, ok := r.cfg.CityByCode(opp.City)
		if !ok {
			continue
		}
		date := opp.TargetDate.String()
		if !Settleable(city, opp.Platform, date, now) {
			continue
		}

		actual, station, final, err := r.finalHigh(ctx, city, opp.Platform, date)
		if err != nil {
			r.log.Warn().Err(err).Str("market", opp.MarketID).Msg("settlement fetch failed")
			continue
		}
		if !final {
			// The authoritative source hasn't published. Positions stay
			// open; a substitute reading would poison every calibration
			// table downstream.
			continue
		}

		if err := r.settleMarket(ctx, opp, actual, station); err != nil {
			r.log.Error().Err(err).Str("market", opp.MarketID).Msg("settle failed")
			continue
		}
		settled++
		graded[types.ForecastKey(opp.City, date)] = actual
	}

	if err := r.settleTrades(ctx); err != nil {
		r.log.Error().Err(err).Msg("trade settlement pass failed")
	}

	for key, actual := range graded {
		city, date := splitKey(key)
		r.gradeForecasts(ctx, city, date, actual)
		if err := r.store.InsertDailySummary(ctx, city, date, actual); err != nil {
			r.log.Warn().Err(err).Str("city", city).Msg("daily summary row failed")
		}
	}

	if settled > 0 {
		r.rebuildCalibrations(ctx)
		if err := r.store.RefreshViews(ctx); err != nil {
			r.log.Warn().Err(err).Msg("view refresh incomplete")
		}
		r.dailySummary(ctx, settled)
	}
	return nil
}

// finalHigh returns the settled high from the platform's authoritative
// source, final=false when it has not published yet.
func (r *Resolver) finalHigh(ctx context.Context, city config.CityConfig, p types.Platform, date string) (actual float64, station string, final bool, err error) {
	switch p {
	case types.PlatformKalshi:
		if r.kalshi == nil {
			return 0, "", false, nil
		}
		temp, ok, err := r.kalshi.SettledHigh(ctx, city, date)
		return temp, city.NWSStation, ok, err

	case types.PlatformPolymarket:
		if r.wu == nil || !r.wu.Enabled() || city.PolymarketStation == "" {
			return 0, "", false, nil
		}
		temp, err := r.wu.DailyHigh(ctx, city.PolymarketStation, city.CountryCode, city.Unit, date)
		if err != nil {
			return 0, "", false, err
		}
		return temp, city.PolymarketStation, true, nil
	}
	return 0, "", false, nil
}

// settleMarket records the canonical outcome and backfills every
// evaluation of the market.
func (r *Resolver) settleMarket(ctx context.Context, opp storage.Opportunity, actual float64, station string) error {
	res := &storage.MarketResolution{
		MarketID:          opp.MarketID,
		City:              opp.City,
		TargetDate:        opp.TargetDate,
		Platform:          opp.Platform,
		ActualTemp:        storage.Numeric(actual),
		ResolutionStation: station,
	}
	if err := r.store.UpsertResolution(ctx, res); err != nil {
		return err
	}

	n, err := r.store.BackfillOutcomes(ctx, opp.MarketID, actual)
	if err != nil {
		return err
	}
	r.log.Info().Str("market", opp.MarketID).Float64("actual", actual).
		Int64("evaluations", n).Msg("market settled")
	return nil
}

// settleTrades resolves every open trade whose market has a recorded
// outcome. Entry-time observation audit columns are left untouched.
func (r *Resolver) settleTrades(ctx context.Context) error {
	trades, err := r.store.OpenTrades(ctx)
	if err != nil {
		return err
	}
	for i := range trades {
		t := &trades[i]
		res, err := r.store.Resolution(ctx, t.MarketID)
		if err != nil {
			r.log.Warn().Err(err).Str("trade", t.ID).Msg("resolution lookup failed")
			continue
		}
		if res == nil {
			continue
		}

		actual := res.ActualTemp.Float64()
		won := TradeWon(t.Range(), t.Side, actual)
		pnl := TradePnL(t.Shares, t.Cost.Float64(), t.Fees.Float64(), won)

		err = r.store.ResolveTrade(ctx, t.ID, won, actual, pnl, t.Fees.Float64(), res.ResolutionStation)
		if err != nil {
			r.log.Error().Err(err).Str("trade", t.ID).Msg("trade resolve failed")
			continue
		}
		r.log.Info().
			Str("city", t.City).
			Str("trade", t.ID).
			Bool("won", won).
			Float64("actual", actual).
			Float64("pnl", pnl).
			Msg("trade resolved")
		if r.notify != nil {
			verdict := "LOST"
			if won {
				verdict = "WON"
			}
			r.notify.Notify("%s %s %s %s %s: actual %.1f, pnl %+.2f",
				verdict, t.City, t.TargetDate, t.RangeName, t.Side, actual, pnl)
		}
	}
	return nil
}

// TradeWon settles a side against the actual high.
func TradeWon(r types.TempRange, side types.Side, actual float64) bool {
	yes := r.Contains(actual)
	if side == types.SideNo {
		return !yes
	}
	return yes
}

// TradePnL returns realized profit: winners collect $1 a share, losers
// forfeit the stake, and fees come out either way.
func TradePnL(shares int, cost, fees float64, won bool) float64 {
	if won {
		return float64(shares) - cost - fees
	}
	return -cost - fees
}

// gradeForecasts writes one accuracy row per snapshotted source for the
// settled day. Duplicate grades are dropped by the store.
func (r *Resolver) gradeForecasts(ctx context.Context, city, date string, actual float64) {
	snaps, err := r.store.LatestForecastSnapshots(ctx, city, date)
	if err != nil {
		r.log.Warn().Err(err).Str("city", city).Msg("snapshot load failed")
		return
	}
	for _, snap := range snaps {
		f := snap.HighF.Float64()
		row := &storage.AccuracyRow{
			City:        city,
			TargetDate:  storage.Date(date),
			Source:      snap.Source,
			ForecastF:   snap.HighF,
			ActualF:     storage.Numeric(actual),
			SignedError: storage.Numeric(f - actual),
			AbsError:    storage.Numeric(math.Abs(f - actual)),
		}
		if err := r.store.InsertAccuracyRow(ctx, row); err != nil {
			r.log.Warn().Err(err).Str("source", snap.Source).Msg("accuracy row failed")
		}
	}
}

// rebuildCalibrations regenerates both calibration tables and the
// per-city error distributions from settled history.
func (r *Resolver) rebuildCalibrations(ctx context.Context) {
	cal := r.cfg.Calibration
	if err := r.store.RebuildModelCalibration(ctx, cal.WindowDays, cal.MaxCorrectionRatio); err != nil {
		r.log.Error().Err(err).Msg("model calibration rebuild failed")
	}
	if err := r.store.RebuildMarketCalibration(ctx, cal.WindowDays); err != nil {
		r.log.Error().Err(err).Msg("market calibration rebuild failed")
	}

	for _, city := range r.cfg.Cities {
		errs, err := r.store.CorrectedEnsembleErrors(ctx, city.Code, r.cfg.Forecast.AccuracyWindowDays)
		if err != nil {
			r.log.Warn().Err(err).Str("city", city.Code).Msg("ensemble errors load failed")
			continue
		}
		if len(errs) < r.cfg.Forecast.MinStdDevSamples {
			continue
		}
		mean, std := numerics.MeanStd(errs)
		d := &storage.CityErrorDistribution{
			City:      city.Code,
			N:         len(errs),
			MeanError: storage.Numeric(mean),
			StdDev:    storage.Numeric(std),
			P5:        storage.Numeric(numerics.Percentile(errs, 0.05)),
			P25:       storage.Numeric(numerics.Percentile(errs, 0.25)),
			P50:       storage.Numeric(numerics.Percentile(errs, 0.50)),
			P75:       storage.Numeric(numerics.Percentile(errs, 0.75)),
			P95:       storage.Numeric(numerics.Percentile(errs, 0.95)),
		}
		if err := r.store.UpsertCityErrorDistribution(ctx, d); err != nil {
			r.log.Warn().Err(err).Str("city", city.Code).Msg("error distribution upsert failed")
		}
	}
}

// dailySummary pushes the aggregate picture after a settlement pass.
func (r *Resolver) dailySummary(ctx context.Context, settled int) {
	if r.notify == nil {
		return
	}
	s, err := r.store.Summary(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("summary load failed")
		return
	}
	r.notify.Notify("SETTLED %d markets | trades %d (open %d) | W/L %d/%d | pnl %+.2f (fees %.2f)",
		settled, s.TotalTrades, s.OpenTrades, s.Wins, s.Losses,
		s.TotalPnL.Float64(), s.TotalFees.Float64())
}

func splitKey(key string) (city, date string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
