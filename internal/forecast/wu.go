package forecast

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

const defaultWUURL = "https://api.weather.com"

// WUSource reads the Weather Underground 5-day daily forecast. Keyed;
// disabled without an API key. It forecasts the same station family
// Polymarket settles against, which makes it a valuable ensemble member
// for that venue.
type WUSource struct {
	http   *resty.Client
	apiKey string
}

// NewWUSource builds the source.
func NewWUSource(cfg config.SourcesConfig) *WUSource {
	base := cfg.WUURL
	if base == "" {
		base = defaultWUURL
	}
	return &WUSource{
		http:   newSourceClient(base, cfg.RequestTimeout),
		apiKey: cfg.WUAPIKey,
	}
}

func (s *WUSource) Name() string { return "wu" }

// FetchHigh implements Source.
func (s *WUSource) FetchHigh(ctx context.Context, city config.CityConfig, date string) (float64, error) {
	if s.apiKey == "" {
		return 0, ErrSourceInapplicable
	}

	var out struct {
		ValidTimeLocal []string   `json:"validTimeLocal"`
		TemperatureMax []*float64 `json:"temperatureMax"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"geocode":  fmt.Sprintf("%.4f,%.4f", city.Lat, city.Lon),
			"format":   "json",
			"units":    wuUnits(city.Unit),
			"language": "en-US",
			"apiKey":   s.apiKey,
		}).
		SetResult(&out).
		Get("/v3/wx/forecast/daily/5day")
	if err != nil {
		return 0, fmt.Errorf("wu forecast: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("wu forecast: status %d", resp.StatusCode())
	}

	for i, ts := range out.ValidTimeLocal {
		if len(ts) >= 10 && ts[:10] == date {
			// Today's max is null after the daytime period rolls off.
			if i < len(out.TemperatureMax) && out.TemperatureMax[i] != nil {
				return *out.TemperatureMax[i], nil
			}
			return 0, fmt.Errorf("wu forecast: max unavailable for %s", date)
		}
	}
	return 0, fmt.Errorf("wu forecast: no entry for %s", date)
}

func wuUnits(u types.Unit) string {
	if u == types.UnitC {
		return "m"
	}
	return "e"
}
