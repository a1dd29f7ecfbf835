package forecast

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

const defaultTomorrowURL = "https://api.tomorrow.io"

// TomorrowSource reads the tomorrow.io daily timeline. Keyed; disabled
// when no API key is configured.
type TomorrowSource struct {
	http   *resty.Client
	apiKey string
}

// NewTomorrowSource builds the source.
func NewTomorrowSource(cfg config.SourcesConfig) *TomorrowSource {
	base := cfg.TomorrowURL
	if base == "" {
		base = defaultTomorrowURL
	}
	return &TomorrowSource{
		http:   newSourceClient(base, cfg.RequestTimeout),
		apiKey: cfg.TomorrowAPIKey,
	}
}

func (s *TomorrowSource) Name() string { return "tomorrow" }

// FetchHigh implements Source.
func (s *TomorrowSource) FetchHigh(ctx context.Context, city config.CityConfig, date string) (float64, error) {
	if s.apiKey == "" {
		return 0, ErrSourceInapplicable
	}

	var out struct {
		Timelines struct {
			Daily []struct {
				Time   string `json:"time"`
				Values struct {
					TemperatureMax float64 `json:"temperatureMax"`
				} `json:"values"`
			} `json:"daily"`
		} `json:"timelines"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"location": fmt.Sprintf("%.4f,%.4f", city.Lat, city.Lon),
			"timezone": city.Timezone,
			"units":    tomorrowUnits(city.Unit),
			"apikey":   s.apiKey,
		}).
		SetResult(&out).
		Get("/v4/weather/forecast")
	if err != nil {
		return 0, fmt.Errorf("tomorrow.io: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("tomorrow.io: status %d", resp.StatusCode())
	}

	for _, d := range out.Timelines.Daily {
		if strings.HasPrefix(d.Time, date) {
			return d.Values.TemperatureMax, nil
		}
	}
	return 0, fmt.Errorf("tomorrow.io: no daily entry for %s", date)
}

func tomorrowUnits(u types.Unit) string {
	if u == types.UnitC {
		return "metric"
	}
	return "imperial"
}
