package config

import (
	"fmt"
	"time"

	"weatheredge/pkg/types"
)

// CityConfig describes one tradable city. Static per run.
type CityConfig struct {
	Code     string     `mapstructure:"code"` // short code (LAX, NYC, ...)
	Name     string     `mapstructure:"name"`
	Timezone string     `mapstructure:"timezone"`
	Lat      float64    `mapstructure:"lat"`
	Lon      float64    `mapstructure:"lon"`
	Unit     types.Unit `mapstructure:"unit"`

	// Kalshi resolves against the NWS daily climatological report for this
	// station; the event prefix builds tickers like KXHIGHLAX-26AUG24.
	KalshiEventPrefix string `mapstructure:"kalshi_event_prefix"`
	NWSStation        string `mapstructure:"nws_station"`

	// Polymarket resolves against the Weather Underground historical API
	// for this ICAO station (may differ from NWSStation). CountryCode is
	// the ISO code the WU location key embeds; empty means US.
	PolymarketStation string `mapstructure:"polymarket_station"`
	CountryCode       string `mapstructure:"country_code"`

	// Nearby personal weather stations for the observation fast path.
	PWSStations []string `mapstructure:"pws_stations"`

	// Flags.
	KalshiBlocked     bool `mapstructure:"kalshi_blocked"`      // resolution-source bias unresolved
	KalshiNWSPriority bool `mapstructure:"kalshi_nws_priority"` // boost NWS weight for Kalshi pricing

	// Monthly average highs, used only as a low-confidence fallback marker.
	MonthlyAvgHigh map[time.Month]float64 `mapstructure:"-"`
}

// Validate checks the static fields a city cannot run without.
func (c CityConfig) Validate() error {
	if c.Code == "" {
		return fmt.Errorf("missing code")
	}
	if c.Timezone == "" {
		return fmt.Errorf("missing timezone")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("bad timezone %q: %w", c.Timezone, err)
	}
	if c.Unit != types.UnitF && c.Unit != types.UnitC {
		return fmt.Errorf("unit must be F or C")
	}
	if c.NWSStation == "" && c.PolymarketStation == "" {
		return fmt.Errorf("no resolution station configured")
	}
	return nil
}

// Location returns the city's timezone, falling back to UTC on error.
// Validate catches bad zones at startup, so the fallback is unreachable in
// a validated config.
func (c CityConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDate returns the city-local calendar date (YYYY-MM-DD) at t.
func (c CityConfig) LocalDate(t time.Time) string {
	return t.In(c.Location()).Format("2006-01-02")
}

// IsDualStation reports whether the two platforms resolve against different
// stations. Dual-station cities get one confidence tier of extra spread.
func (c CityConfig) IsDualStation() bool {
	return c.NWSStation != "" && c.PolymarketStation != "" &&
		c.NWSStation != c.PolymarketStation
}

// ClimatologyHigh returns the monthly average high, or 0 when unknown.
func (c CityConfig) ClimatologyHigh(m time.Month) float64 {
	return c.MonthlyAvgHigh[m]
}

// DefaultCities returns the built-in city registry.
func DefaultCities() []CityConfig {
	return []CityConfig{
		{
			Code: "LAX", Name: "Los Angeles", Timezone: "America/Los_Angeles",
			Lat: 33.9425, Lon: -118.4081, Unit: types.UnitF,
			KalshiEventPrefix: "KXHIGHLAX", NWSStation: "KLAX",
			KalshiNWSPriority: true,
			PolymarketStation: "KLAX",
			PWSStations:       []string{"KCAELSEG42", "KCAHAWTH14", "KCAINGLE30"},
			MonthlyAvgHigh: map[time.Month]float64{
				time.January: 68, time.February: 69, time.March: 70,
				time.April: 72, time.May: 74, time.June: 78,
				time.July: 83, time.August: 84, time.September: 83,
				time.October: 79, time.November: 73, time.December: 68,
			},
		},
		{
			Code: "NYC", Name: "New York City", Timezone: "America/New_York",
			Lat: 40.7794, Lon: -73.9692, Unit: types.UnitF,
			// The sheltered Central Park sensor drifts from the NWS point
			// forecast, so the Kalshi mean stays unboosted here.
			KalshiEventPrefix: "KXHIGHNY", NWSStation: "KNYC",
			PolymarketStation: "KLGA",
			PWSStations:       []string{"KNYNEWYO1864", "KNYNEWYO1962", "KNJWEEHA28"},
			MonthlyAvgHigh: map[time.Month]float64{
				time.January: 39, time.February: 42, time.March: 50,
				time.April: 61, time.May: 71, time.June: 79,
				time.July: 84, time.August: 83, time.September: 76,
				time.October: 65, time.November: 54, time.December: 44,
			},
		},
		{
			Code: "CHI", Name: "Chicago", Timezone: "America/Chicago",
			Lat: 41.9742, Lon: -87.9073, Unit: types.UnitF,
			KalshiEventPrefix: "KXHIGHCHI", NWSStation: "KMDW",
			KalshiNWSPriority: true,
			PolymarketStation: "KMDW",
			PWSStations:       []string{"KILCHICA550", "KILCHICA392", "KILCICER12"},
			MonthlyAvgHigh: map[time.Month]float64{
				time.January: 32, time.February: 36, time.March: 47,
				time.April: 59, time.May: 70, time.June: 80,
				time.July: 84, time.August: 82, time.September: 75,
				time.October: 62, time.November: 48, time.December: 35,
			},
		},
		{
			Code: "MIA", Name: "Miami", Timezone: "America/New_York",
			Lat: 25.7959, Lon: -80.2870, Unit: types.UnitF,
			KalshiEventPrefix: "KXHIGHMIA", NWSStation: "KMIA",
			KalshiNWSPriority: true,
			PolymarketStation: "KMIA",
			PWSStations:       []string{"KFLMIAMI390", "KFLMIAMI488", "KFLVIRGI13"},
			MonthlyAvgHigh: map[time.Month]float64{
				time.January: 76, time.February: 78, time.March: 80,
				time.April: 83, time.May: 87, time.June: 89,
				time.July: 91, time.August: 91, time.September: 89,
				time.October: 86, time.November: 81, time.December: 77,
			},
		},
		{
			Code: "AUS", Name: "Austin", Timezone: "America/Chicago",
			Lat: 30.1975, Lon: -97.6664, Unit: types.UnitF,
			KalshiEventPrefix: "KXHIGHAUS", NWSStation: "KAUS",
			KalshiNWSPriority: true,
			PolymarketStation: "KAUS",
			PWSStations:       []string{"KTXAUSTI2557", "KTXAUSTI1630", "KTXDELVA19"},
			MonthlyAvgHigh: map[time.Month]float64{
				time.January: 62, time.February: 66, time.March: 73,
				time.April: 80, time.May: 86, time.June: 93,
				time.July: 97, time.August: 98, time.September: 92,
				time.October: 82, time.November: 71, time.December: 63,
			},
		},
		{
			Code: "PHIL", Name: "Philadelphia", Timezone: "America/New_York",
			Lat: 39.8721, Lon: -75.2411, Unit: types.UnitF,
			KalshiEventPrefix: "KXHIGHPHIL", NWSStation: "KPHL",
			KalshiNWSPriority: true,
			PolymarketStation: "KPHL",
			PWSStations:       []string{"KPAPHILA190", "KPAPHILA466", "KNJCAMDE24"},
			MonthlyAvgHigh: map[time.Month]float64{
				time.January: 40, time.February: 44, time.March: 53,
				time.April: 64, time.May: 74, time.June: 83,
				time.July: 87, time.August: 85, time.September: 78,
				time.October: 67, time.November: 55, time.December: 45,
			},
		},
		{
			Code: "DEN", Name: "Denver", Timezone: "America/Denver",
			Lat: 39.8561, Lon: -104.6737, Unit: types.UnitF,
			KalshiEventPrefix: "KXHIGHDEN", NWSStation: "KDEN",
			KalshiNWSPriority: true,
			PolymarketStation: "KDEN",
			PWSStations:       []string{"KCODENVE966", "KCODENVE1279", "KCOAUROR207"},
			MonthlyAvgHigh: map[time.Month]float64{
				time.January: 45, time.February: 48, time.March: 55,
				time.April: 62, time.May: 71, time.June: 82,
				time.July: 88, time.August: 86, time.September: 78,
				time.October: 65, time.November: 52, time.December: 45,
			},
		},
		{
			Code: "LON", Name: "London", Timezone: "Europe/London",
			Lat: 51.4775, Lon: -0.4614, Unit: types.UnitC,
			KalshiEventPrefix: "", NWSStation: "",
			PolymarketStation: "EGLL", CountryCode: "GB",
			PWSStations:       []string{"ILONDON1147", "IHOUNSLO21", "IFELTH6"},
		},
	}
}

// CityByCode returns the configured city with the given code, or false.
func (c *Config) CityByCode(code string) (CityConfig, bool) {
	for _, city := range c.Cities {
		if city.Code == code {
			return city, true
		}
	}
	return CityConfig{}, false
}

// PeakHours reports whether any configured city is currently in its
// afternoon peak (11:00-17:00 local), when the daily high usually prints.
// The observation poller tightens its interval during peak.
func (c *Config) PeakHours(now time.Time) bool {
	for _, city := range c.Cities {
		h := now.In(city.Location()).Hour()
		if h >= 11 && h < 17 {
			return true
		}
	}
	return false
}
