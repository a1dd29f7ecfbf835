package scanner

import (
	"context"
	"database/sql"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"weatheredge/internal/config"
	"weatheredge/internal/forecast"
	"weatheredge/internal/numerics"
	"weatheredge/internal/platform"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

// Candidate is a filter-clean entry handed to the executor.
type Candidate struct {
	Market types.Market
	Side   types.Side
	Ask    float64
	Bid    float64

	RawProb       float64
	CorrectedProb float64
	Edge          float64
	Kelly         float64 // fractional Kelly of bankroll

	Forecast     *forecast.Distribution
	CalConfirmed bool
	Reason       types.EntryReason

	ProbBucket        string
	LeadBucket        string
	PriceBucket       string
	HoursToResolution float64

	OpportunityID string // row to retag if the executor blocks
}

// CycleCalibration is the calibration state loaded once per cycle.
type CycleCalibration struct {
	Model  *forecast.Calibrator
	Market map[string]storage.MarketCalibrationBucket
}

// LoadCycleCalibration reads both calibration tables.
func LoadCycleCalibration(ctx context.Context, store *storage.Store, cal config.CalibrationConfig) (*CycleCalibration, error) {
	model, err := store.ModelCalibration(ctx)
	if err != nil {
		return nil, err
	}
	market, err := store.MarketCalibration(ctx)
	if err != nil {
		return nil, err
	}
	return &CycleCalibration{
		Model:  forecast.NewCalibrator(model, cal.ModelProbMinN, cal.MaxCorrectionRatio),
		Market: market,
	}, nil
}

// Scanner drives markets x forecasts through the filter pipeline.
type Scanner struct {
	cfg      *config.Config
	store    *storage.Store
	engine   *forecast.Engine
	adapters []platform.Adapter
	log      zerolog.Logger
}

// New builds the scanner.
func New(cfg *config.Config, store *storage.Store, engine *forecast.Engine, adapters []platform.Adapter, log zerolog.Logger) *Scanner {
	return &Scanner{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		adapters: adapters,
		log:      log.With().Str("component", "scanner").Logger(),
	}
}

// ScanCycle evaluates every city and returns filter-clean candidates.
// Opportunity rows are written for every evaluation, entered or not.
func (s *Scanner) ScanCycle(ctx context.Context, cal *CycleCalibration) ([]Candidate, error) {
	open, err := s.store.OpenTrades(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("open trades load failed; adjacent-range guard degraded")
	}

	var (
		mu         sync.Mutex
		candidates []Candidate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, city := range s.cfg.Cities {
		city := city
		g.Go(func() error {
			cands, err := s.scanCity(gctx, city, cal, open)
			if err != nil {
				s.log.Error().Err(err).Str("city", city.Code).Msg("city scan failed")
				return nil // isolate per-city failures
			}
			mu.Lock()
			candidates = append(candidates, cands...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return candidates, nil
}

func (s *Scanner) scanCity(ctx context.Context, city config.CityConfig, cal *CycleCalibration, open []storage.Trade) ([]Candidate, error) {
	date := city.LocalDate(time.Now())

	dist, err := s.engine.Forecast(ctx, city, date)
	if err != nil {
		return nil, err
	}
	if dist.LowConfidence {
		s.log.Warn().Str("city", city.Code).Msg("city skipped: low-confidence forecast")
		return nil, nil
	}

	cityMAE := s.cityMAE(ctx, city.Code)
	obsHigh := s.observationHigh(ctx, city.Code, date)

	var candidates []Candidate
	for _, adapter := range s.adapters {
		markets, err := adapter.FetchMarkets(ctx, city, date)
		if err != nil {
			s.log.Warn().Err(err).Str("city", city.Code).
				Str("platform", string(adapter.Platform())).Msg("market fetch failed")
			continue
		}
		if len(markets) == 0 {
			continue
		}

		implied := MarketImpliedMean(markets)
		for _, m := range markets {
			for _, side := range []types.Side{types.SideYes, types.SideNo} {
				c, entered := s.evaluate(ctx, city, m, side, dist, implied, cityMAE, obsHigh, cal, open)
				if entered {
					candidates = append(candidates, c)
				}
			}
		}
	}
	return candidates, nil
}

// evaluate runs one (market, side) through the chain and persists the
// opportunity row. Returns the candidate when it passed every filter.
func (s *Scanner) evaluate(ctx context.Context, city config.CityConfig, m types.Market, side types.Side, dist *forecast.Distribution, implied float64, cityMAE float64, obsHigh *float64, cal *CycleCalibration, open []storage.Trade) (Candidate, bool) {
	ask, bid := m.BestAsk, m.BestBid
	if side == types.SideNo {
		bid, ask = platform.NoQuote(m)
	}

	rawYes := dist.Probability(m.Range, m.Platform)
	raw := rawYes
	if side == types.SideNo {
		raw = 1 - rawYes
	}

	rangeType := string(m.Range.Type)
	corrected, probBucket := cal.Model.Correct(raw, rangeType)
	edge := corrected - ask

	hours := time.Until(m.CloseTime).Hours()
	if m.CloseTime.IsZero() {
		hours = hoursToLocalMidnight(city)
	}
	leadBucket := LeadTimeBucket(hours)
	priceBucket := PriceBucket(ask)

	var bucket *storage.MarketCalibrationBucket
	if b, ok := cal.Market[storage.MarketCalKey(m.Platform, rangeType, leadBucket, priceBucket)]; ok {
		bucket = &b
	}

	platformEnabled := s.platformEnabled(m.Platform)
	divergence := math.Abs(dist.Mean(m.Platform) - implied)
	if implied == 0 {
		divergence = 0
	}

	reason, calConfirmed := Evaluate(EvalInput{
		Side:              side,
		Range:             m.Range,
		Platform:          m.Platform,
		Ask:               ask,
		Bid:               bid,
		Spread:            m.Spread,
		RawProb:           raw,
		Corrected:         corrected,
		Edge:              edge,
		HoursToResolution: hours,
		CityMAE:           cityMAE,
		Sigma:             dist.Sigma,
		Divergence:        divergence,
		ObservationHigh:   obsHigh,
		PlatformEnabled:   platformEnabled,
		CityBlocked:       city.KalshiBlocked,
		AdjacentToYes:     side == types.SideNo && AdjacentToHeldYes(open, city.Code, m.TargetDate, m.Range),
		CalBucket:         bucket,
	}, s.cfg.Filters, s.cfg.Calibration, s.maeCeiling(city, m.Range.Type))

	kelly := numerics.FractionalKelly(corrected, ask, s.cfg.Sizing.KellyFraction)

	near, far := m.Range.EdgeDistances(dist.Mean(m.Platform))

	opp := &storage.Opportunity{
		City:       city.Code,
		TargetDate: storage.Date(m.TargetDate),
		Platform:   m.Platform,
		MarketID:   m.ID,
		RangeName:  m.Range.Name,
		RangeMin:   storage.FromPtr(m.Range.Min),
		RangeMax:   storage.FromPtr(m.Range.Max),
		RangeType:  rangeType,
		Side:       side,

		BestBid:  storage.Numeric(bid),
		BestAsk:  storage.Numeric(ask),
		Spread:   storage.Numeric(m.Spread),
		BidDepth: storage.Numeric(m.BidDepth),
		AskDepth: storage.Numeric(m.AskDepth),
		Volume:   storage.Numeric(m.Volume),

		ForecastTemp:     storage.FromPtr(ptr(dist.Mean(m.Platform))),
		EnsembleStdDev:   storage.FromPtr(ptr(dist.Sigma)),
		SourceSpread:     storage.FromPtr(ptr(dist.Spread)),
		MarketImpliedT:   storage.FromPtr(nonZeroPtr(implied)),
		MarketDivergence: storage.FromPtr(ptr(divergence)),
		NearEdgeDist:     storage.FromPtr(finitePtr(near)),
		FarEdgeDist:      storage.FromPtr(finitePtr(far)),

		RawProbability:       storage.Numeric(raw),
		CorrectedProbability: storage.Numeric(corrected),
		Edge:                 storage.Numeric(edge),
		KellyFraction:        storage.Numeric(kelly),
		ProbBucket:           probBucket,
		LeadTimeBucket:       leadBucket,
		PriceBucket:          priceBucket,
		HoursToResolution:    storage.FromPtr(ptr(hours)),

		Action: storage.ActionEntered,
	}
	if reason != "" {
		opp.Action = storage.ActionFiltered
		opp.FilterReason = sql.NullString{String: reason, Valid: true}
	}
	if reason == FilterGhostMarket {
		// The platform withdrew the book. Purge this market's unsettled
		// filtered rows so they cannot skew calibration, and keep one
		// tombstone so the disappearance stays visible.
		opp.Action = storage.ActionGhostDeleted
		if n, err := s.store.DeleteGhostEvaluations(ctx, m.ID, m.TargetDate); err != nil {
			s.log.Warn().Err(err).Str("market", m.ID).Msg("ghost purge failed")
		} else if n > 0 {
			s.log.Info().Str("market", m.ID).Int64("purged", n).Msg("ghost market evaluations purged")
		}
	}
	if err := s.store.InsertOpportunity(ctx, opp); err != nil {
		s.log.Error().Err(err).Str("market", m.ID).Msg("opportunity insert failed")
	}

	if reason != "" {
		return Candidate{}, false
	}
	return Candidate{
		Market:            m,
		Side:              side,
		Ask:               ask,
		Bid:               bid,
		RawProb:           raw,
		CorrectedProb:     corrected,
		Edge:              edge,
		Kelly:             kelly,
		Forecast:          dist,
		CalConfirmed:      calConfirmed,
		Reason:            types.ReasonEdge,
		ProbBucket:        probBucket,
		LeadBucket:        leadBucket,
		PriceBucket:       priceBucket,
		HoursToResolution: hours,
		OpportunityID:     opp.ID,
	}, true
}

// MarketImpliedMean derives a temperature from mid-prices over bounded
// ranges: the price-weighted centroid of range midpoints. Zero when the
// series has no priced bounded ranges.
func MarketImpliedMean(markets []types.Market) float64 {
	var wsum, sum float64
	for _, m := range markets {
		if m.Range.Min == nil || m.Range.Max == nil {
			continue
		}
		mid := m.MidPrice()
		if mid <= 0 {
			continue
		}
		center := (*m.Range.Min + *m.Range.Max) / 2
		sum += mid * center
		wsum += mid
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

func (s *Scanner) platformEnabled(p types.Platform) bool {
	switch p {
	case types.PlatformKalshi:
		return s.cfg.Platforms.Kalshi.TradingEnabled
	case types.PlatformPolymarket:
		return s.cfg.Platforms.Polymarket.TradingEnabled
	}
	return false
}

func (s *Scanner) maeCeiling(city config.CityConfig, rt types.RangeType) float64 {
	f := s.cfg.Forecast
	if city.Unit == types.UnitC {
		if rt == types.RangeBounded {
			return f.CityMAEBoundedC
		}
		return f.CityMAEUnboundedC
	}
	if rt == types.RangeBounded {
		return f.CityMAEBoundedF
	}
	return f.CityMAEUnboundedF
}

func (s *Scanner) cityMAE(ctx context.Context, city string) float64 {
	maes, err := s.store.SourceMAE(ctx, city, s.cfg.Forecast.AccuracyWindowDays)
	if err != nil {
		s.log.Warn().Err(err).Str("city", city).Msg("city MAE load failed")
		return 0
	}
	return maes["ensemble_corrected"]
}

func (s *Scanner) observationHigh(ctx context.Context, city, date string) *float64 {
	obs, err := s.store.LatestObservation(ctx, city, date)
	if err != nil || obs == nil {
		return nil
	}
	return ptr(obs.RunningHigh.Float64())
}

func hoursToLocalMidnight(city config.CityConfig) float64 {
	now := time.Now().In(city.Location())
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	return midnight.Sub(now).Hours()
}

func ptr(f float64) *float64 { return &f }

func nonZeroPtr(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

func finitePtr(f float64) *float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}
