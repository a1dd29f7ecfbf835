package observation

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"weatheredge/internal/config"
	"weatheredge/internal/storage"
	"weatheredge/pkg/types"
)

// PendingEvent fires when a city's running high crosses a whole-degree
// boundary; the guaranteed-win fast scan consumes these.
type PendingEvent struct {
	City       string
	TargetDate string
	RunningHigh float64
	WUHigh     *float64
	PWSMedian  *float64
	// PWSConfirmed reports the median held above the crossed boundary for
	// the configured number of consecutive polls.
	PWSConfirmed bool
	Source       string // "metar", "wu", "pws"
	At           time.Time
}

// Poller maintains per-day running highs across all active cities.
type Poller struct {
	store  *storage.Store
	metar  *MetarClient
	wu     *WUClient
	cities []config.CityConfig
	cfg    config.ObsPathConfig
	log    zerolog.Logger

	bias *biasTracker

	mu          sync.Mutex
	lastBoundary map[string]float64 // city|date -> last integer boundary crossed
	pwsStreak    map[string]int     // city|date|boundary -> consecutive confirming polls
}

// NewPoller builds the poller.
func NewPoller(store *storage.Store, metar *MetarClient, wu *WUClient, cities []config.CityConfig, cfg config.ObsPathConfig, log zerolog.Logger) *Poller {
	return &Poller{
		store:        store,
		metar:        metar,
		wu:           wu,
		cities:       cities,
		cfg:          cfg,
		log:          log.With().Str("component", "observation").Logger(),
		bias:         newBiasTracker(0.2),
		lastBoundary: make(map[string]float64),
		pwsStreak:    make(map[string]int),
	}
}

// PollOnce runs one observation pass: one batched METAR request for every
// station, then per-city WU and PWS reads in parallel. Returns boundary
// crossing events.
func (p *Poller) PollOnce(ctx context.Context) ([]PendingEvent, error) {
	stationToCities := make(map[string][]int)
	var stations []string
	for i, city := range p.cities {
		for _, st := range []string{city.NWSStation, city.PolymarketStation} {
			if st == "" {
				continue
			}
			if _, seen := stationToCities[st]; !seen {
				stations = append(stations, st)
			}
			stationToCities[st] = append(stationToCities[st], i)
		}
	}

	// METAR reports Celsius; fetch raw F and convert per city below.
	readings, err := p.metar.FetchCurrent(ctx, stations, types.UnitF)
	if err != nil {
		p.log.Warn().Err(err).Msg("metar batch fetch failed")
		readings = nil
	}

	var (
		mu     sync.Mutex
		events []PendingEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, city := range p.cities {
		city := city
		g.Go(func() error {
			evs := p.pollCity(gctx, city, readings)
			if len(evs) > 0 {
				mu.Lock()
				events = append(events, evs...)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return events, nil
}

// pollCity folds this cycle's readings into the running high and detects
// boundary crossings.
func (p *Poller) pollCity(ctx context.Context, city config.CityConfig, metar map[string]MetarReading) []PendingEvent {
	date := city.LocalDate(time.Now())
	var events []PendingEvent

	var metarTemp *float64
	if r, ok := metar[city.NWSStation]; ok {
		t := toCityUnit(r.Temp, city.Unit)
		metarTemp = &t
	} else if r, ok := metar[city.PolymarketStation]; ok {
		t := toCityUnit(r.Temp, city.Unit)
		metarTemp = &t
	}

	var wuHigh *float64
	if p.wu.Enabled() && city.PolymarketStation != "" {
		if high, err := p.wu.DailyHigh(ctx, city.PolymarketStation, city.CountryCode, city.Unit, date); err == nil {
			wuHigh = &high
		} else {
			p.log.Debug().Err(err).Str("city", city.Code).Msg("wu daily high unavailable")
		}
	}

	pwsMedian, pwsConfirmedBoundary := p.pollPWS(ctx, city, date, metarTemp)

	// running_high folds every source; station_high and wu_high stay
	// authoritative-only.
	candidates := []*float64{metarTemp, wuHigh, pwsMedian}
	var best *float64
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if best == nil || *c > *best {
			best = c
		}
	}
	if best == nil {
		return nil
	}

	station := city.NWSStation
	if station == "" {
		station = city.PolymarketStation
	}
	temp := *best
	if metarTemp != nil {
		temp = *metarTemp
	}

	obs := &storage.Observation{
		City:        city.Code,
		TargetDate:  storage.Date(date),
		StationID:   station,
		TempF:       storage.Numeric(temp),
		RunningHigh: storage.Numeric(*best),
		StationHigh: storage.FromPtr(metarTemp),
		WUHigh:      storage.FromPtr(wuHigh),
	}
	if err := p.store.RecordObservation(ctx, obs); err != nil {
		p.log.Error().Err(err).Str("city", city.Code).Msg("record observation failed")
		return nil
	}

	// Boundary crossing: the persisted (monotonic) running high passed a
	// new whole degree since the last poll.
	running := obs.RunningHigh.Float64()
	boundary := math.Floor(running)
	key := types.ForecastKey(city.Code, date)

	p.mu.Lock()
	last, seen := p.lastBoundary[key]
	if !seen || boundary > last {
		p.lastBoundary[key] = boundary
		p.mu.Unlock()
		if seen { // skip the warm-up poll after startup
			events = append(events, PendingEvent{
				City:         city.Code,
				TargetDate:   date,
				RunningHigh:  running,
				WUHigh:       wuHigh,
				PWSMedian:    pwsMedian,
				PWSConfirmed: pwsConfirmedBoundary,
				Source:       crossingSource(metarTemp, wuHigh, pwsMedian, running),
				At:           time.Now(),
			})
		}
	} else {
		p.mu.Unlock()
	}
	return events
}

// pollPWS reads the city's personal stations, applies smoothed bias
// correction against the airport reading, persists samples and returns
// the corrected median plus whether its boundary held ConfirmPolls times.
func (p *Poller) pollPWS(ctx context.Context, city config.CityConfig, date string, authoritative *float64) (*float64, bool) {
	if !p.wu.Enabled() || len(city.PWSStations) == 0 {
		return nil, false
	}

	var samples []CorrectedSample
	for _, stationID := range city.PWSStations {
		r, err := p.wu.PWSCurrent(ctx, stationID, city.Unit)
		if err != nil {
			p.log.Debug().Err(err).Str("station", stationID).Msg("pws read failed")
			continue
		}

		bias := p.bias.bias(stationID)
		if authoritative != nil {
			bias = p.bias.observe(stationID, r.Temp, *authoritative)
		}
		corrected := r.Temp - bias
		samples = append(samples, CorrectedSample{
			StationID: stationID, Raw: r.Temp, Corrected: corrected, Bias: bias,
		})

		sample := &storage.PWSSample{
			City:          city.Code,
			TargetDate:    storage.Date(date),
			StationID:     stationID,
			TempF:         storage.Numeric(r.Temp),
			CorrectedTemp: storage.Numeric(corrected),
			StationBias:   storage.Numeric(bias),
		}
		if err := p.store.InsertPWSSample(ctx, sample); err != nil {
			p.log.Warn().Err(err).Str("station", stationID).Msg("pws sample persist failed")
		}
	}

	median, ok := CorrectedMedian(samples)
	if !ok {
		return nil, false
	}

	// Confirmation streak on the whole-degree boundary the median implies.
	boundary := math.Floor(median)
	streakKey := types.ForecastKey(city.Code, date) + "|" + strconv.Itoa(int(boundary))

	p.mu.Lock()
	p.pwsStreak[streakKey]++
	streak := p.pwsStreak[streakKey]
	p.mu.Unlock()

	confirmed := streak >= p.cfg.PWS.ConfirmPolls
	return &median, confirmed
}

func crossingSource(metar, wu, pws *float64, running float64) string {
	switch {
	case metar != nil && *metar >= running:
		return "metar"
	case wu != nil && *wu >= running:
		return "wu"
	case pws != nil && *pws >= running:
		return "pws"
	default:
		return "metar"
	}
}

func toCityUnit(tempF float64, unit types.Unit) float64 {
	if unit == types.UnitC {
		return (tempF - 32) * 5 / 9
	}
	return tempF
}

