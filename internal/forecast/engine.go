package forecast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"weatheredge/internal/config"
	"weatheredge/internal/numerics"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

// Distribution is the per-(city, date) output: an ensemble temperature
// with an uncertainty model, plus a parallel Kalshi-boosted temperature
// for ranges that settle against the NWS station.
type Distribution struct {
	City       string
	TargetDate string

	Ensemble float64 // weighted mean, city unit

	// KalshiTemp is the NWS-boosted mean for kalshi-settling ranges, valid
	// only when HasKalshiTemp is set. A zero temperature is legitimate in
	// Celsius cities, so presence is tracked explicitly.
	KalshiTemp    float64
	HasKalshiTemp bool

	Sigma   float64 // time-scaled std dev
	Spread  float64 // max-min source disagreement
	DaysOut float64

	Sources map[string]float64 // raw per-source highs
	Weights map[string]float64 // final weights after demotion

	Confidence    Confidence
	LowConfidence bool // too few active sources; city ineligible this cycle

	FetchedAt time.Time
}

// Mean picks the ensemble temperature for a platform. Kalshi ranges
// settle against the NWS station, which gets the boosted mean.
func (d *Distribution) Mean(platform types.Platform) float64 {
	if platform == types.PlatformKalshi && d.HasKalshiTemp {
		return d.KalshiTemp
	}
	return d.Ensemble
}

// Probability evaluates the YES-side probability of a range under this
// distribution, for the mean appropriate to the range's platform.
func (d *Distribution) Probability(r types.TempRange, platform types.Platform) float64 {
	return numerics.RangeProbability(d.Mean(platform), d.Sigma, r.Min, r.Max)
}

// Engine fetches sources, weights them and produces distributions.
type Engine struct {
	store   *storage.Store
	sources []Source
	cfg     config.ForecastConfig
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[string]*Distribution
}

// NewEngine builds the forecast engine. Sources arrive already wrapped
// in breakers.
func NewEngine(store *storage.Store, sources []Source, cfg config.ForecastConfig, log zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		sources: sources,
		cfg:     cfg,
		log:     log.With().Str("component", "forecast").Logger(),
		cache:   make(map[string]*Distribution),
	}
}

// Forecast produces the distribution for (city, date), cached briefly so
// the fast loops amortize fetches across a cycle.
func (e *Engine) Forecast(ctx context.Context, city config.CityConfig, date string) (*Distribution, error) {
	key := types.ForecastKey(city.Code, date)
	ttl := time.Duration(e.cfg.CacheTTLSeconds) * time.Second

	e.mu.Lock()
	if d, ok := e.cache[key]; ok && time.Since(d.FetchedAt) < ttl {
		e.mu.Unlock()
		return d, nil
	}
	e.mu.Unlock()

	estimates := e.fetchAll(ctx, city, date)
	if len(estimates) == 0 {
		return nil, errors.New("no forecast sources available")
	}

	maes, err := e.store.SourceMAE(ctx, city.Code, e.cfg.AccuracyWindowDays)
	if err != nil {
		// Weighting degrades to defaults; the fetch itself succeeded.
		e.log.Warn().Err(err).Str("city", city.Code).Msg("source MAE load failed, using defaults")
		maes = nil
	}

	weighted := ComputeWeights(estimates, maes, city.Unit, e.cfg)
	mean, _ := WeightedMean(weighted, "", 0)

	// The NWS boost only applies where the station report tracks the NWS
	// forecast closely enough to trust; elsewhere the Kalshi mean is just
	// the plain ensemble.
	boost := 0.0
	if city.KalshiNWSPriority {
		boost = e.cfg.KalshiSourceBoost
	}
	kalshiMean, kalshiWeight := WeightedMean(weighted, "nws", boost)
	spread := SourceSpread(weighted)
	active := ActiveCount(weighted)

	daysOut := leadDays(city, date)
	citySigma, cityN, pooled := e.sigmaInputs(ctx, city.Code)
	sigma, tier := Sigma(SigmaInput{
		CitySigma:   citySigma,
		CityN:       cityN,
		PooledSigma: pooled,
		SpreadF:     spreadInF(spread, city.Unit),
		DaysOut:     daysOut,
		DualStation: city.IsDualStation(),
		MinSamples:  e.cfg.MinStdDevSamples,
		Unit:        city.Unit,
	})

	d := &Distribution{
		City:          city.Code,
		TargetDate:    date,
		Ensemble:      mean,
		KalshiTemp:    kalshiMean,
		HasKalshiTemp: kalshiWeight > 0,
		Sigma:         sigma,
		Spread:        spread,
		DaysOut:       daysOut,
		Sources:       make(map[string]float64, len(weighted)),
		Weights:       make(map[string]float64, len(weighted)),
		Confidence:    tier,
		LowConfidence: active < e.cfg.MinActiveSources,
		FetchedAt:     time.Now(),
	}
	for _, w := range weighted {
		d.Sources[w.Source] = w.High
		d.Weights[w.Source] = w.Weight
	}

	// Climatology sanity check: a blend tens of degrees off the monthly
	// normal means a unit mixup or a broken source, not a heat wave.
	if clim := city.ClimatologyHigh(climMonth(city, date)); clim != 0 {
		dev := mean - clim
		if city.Unit == types.UnitC {
			dev *= 9.0 / 5.0
		}
		if dev > climDeviationF || dev < -climDeviationF {
			d.LowConfidence = true
			e.log.Warn().Str("city", city.Code).Float64("ensemble", mean).
				Float64("climatology", clim).Msg("forecast far from climatology")
		}
	}

	if d.LowConfidence {
		e.log.Warn().Str("city", city.Code).Str("date", date).
			Int("active_sources", active).Msg("low-confidence forecast")
	}

	// The blended estimate is graded after settlement like any raw source;
	// the latest snapshot before the day closes is the one scored.
	ens := &storage.ForecastSnapshot{
		City:       city.Code,
		TargetDate: storage.Date(date),
		Source:     "ensemble_corrected",
		HighF:      storage.Numeric(mean),
	}
	if err := e.store.InsertForecastSnapshot(ctx, ens); err != nil {
		e.log.Warn().Err(err).Str("city", city.Code).Msg("ensemble snapshot persist failed")
	}

	e.mu.Lock()
	e.cache[key] = d
	e.mu.Unlock()
	return d, nil
}

// fetchAll fans out across sources with per-call isolation, persisting a
// snapshot per successful fetch for rolling accuracy grading.
func (e *Engine) fetchAll(ctx context.Context, city config.CityConfig, date string) []Estimate {
	var (
		mu        sync.Mutex
		estimates []Estimate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, src := range e.sources {
		src := src
		g.Go(func() error {
			high, err := src.FetchHigh(gctx, city, date)
			if err != nil {
				if !errors.Is(err, ErrSourceInapplicable) {
					e.log.Warn().Err(err).Str("source", src.Name()).
						Str("city", city.Code).Msg("forecast source failed")
				}
				return nil // degrade, never cancel siblings
			}

			mu.Lock()
			estimates = append(estimates, Estimate{Source: src.Name(), High: high})
			mu.Unlock()

			snap := &storage.ForecastSnapshot{
				City:       city.Code,
				TargetDate: storage.Date(date),
				Source:     src.Name(),
				HighF:      storage.Numeric(high),
			}
			if err := e.store.InsertForecastSnapshot(gctx, snap); err != nil {
				e.log.Warn().Err(err).Str("source", src.Name()).Msg("snapshot persist failed")
			}
			return nil
		})
	}
	g.Wait()
	return estimates
}

// sigmaInputs loads the empirical per-city and pooled std devs.
func (e *Engine) sigmaInputs(ctx context.Context, city string) (citySigma float64, cityN int, pooled float64) {
	dists, err := e.store.CityErrorDistributions(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("city error distributions load failed, using tier table")
		return 0, 0, 0
	}

	var sum float64
	var n int
	for code, d := range dists {
		if d.StdDev.Float64() <= 0 {
			continue
		}
		sum += d.StdDev.Float64()
		n++
		if code == city {
			citySigma = d.StdDev.Float64()
			cityN = d.N
		}
	}
	if n > 0 {
		pooled = sum / float64(n)
	}
	return citySigma, cityN, pooled
}

// leadDays computes days from now to the target date in city-local time.
// climDeviationF is how far (F) the blend may sit from the monthly
// normal before the city is flagged ineligible for the cycle.
const climDeviationF = 25.0

func climMonth(city config.CityConfig, date string) time.Month {
	target, err := time.ParseInLocation("2006-01-02", date, city.Location())
	if err != nil {
		return time.Now().In(city.Location()).Month()
	}
	return target.Month()
}

func leadDays(city config.CityConfig, date string) float64 {
	target, err := time.ParseInLocation("2006-01-02", date, city.Location())
	if err != nil {
		return 1
	}
	// Resolution happens at end of day; measure to local midnight after.
	hours := time.Until(target.Add(24 * time.Hour)).Hours()
	if hours < 24 {
		return 1
	}
	return hours / 24
}

func spreadInF(spread float64, unit types.Unit) float64 {
	if unit == types.UnitC {
		return spread * 9 / 5
	}
	return spread
}
