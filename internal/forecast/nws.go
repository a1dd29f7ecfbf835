package forecast

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

const defaultNWSURL = "https://api.weather.gov"

// NWSSource reads the National Weather Service point forecast. US cities
// only; it is also the boosted source for Kalshi-settling cities because
// Kalshi resolves against the NWS climate report.
type NWSSource struct {
	http *resty.Client

	mu       sync.Mutex
	gridURLs map[string]string // city code -> forecast URL, resolved once
}

// NewNWSSource builds the source.
func NewNWSSource(cfg config.SourcesConfig) *NWSSource {
	base := cfg.NWSURL
	if base == "" {
		base = defaultNWSURL
	}
	client := newSourceClient(base, cfg.RequestTimeout).
		SetHeader("User-Agent", "weatheredge (paper trading research)")
	return &NWSSource{http: client, gridURLs: make(map[string]string)}
}

func (s *NWSSource) Name() string { return "nws" }

// FetchHigh implements Source.
func (s *NWSSource) FetchHigh(ctx context.Context, city config.CityConfig, date string) (float64, error) {
	if city.NWSStation == "" {
		return 0, ErrSourceInapplicable
	}

	forecastURL, err := s.forecastURL(ctx, city)
	if err != nil {
		return 0, err
	}

	var out struct {
		Properties struct {
			Periods []struct {
				StartTime   string `json:"startTime"`
				IsDaytime   bool   `json:"isDaytime"`
				Temperature int    `json:"temperature"`
			} `json:"periods"`
		} `json:"properties"`
	}
	resp, err := s.http.R().SetContext(ctx).SetResult(&out).Get(forecastURL)
	if err != nil {
		return 0, fmt.Errorf("nws forecast: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("nws forecast: status %d", resp.StatusCode())
	}

	for _, p := range out.Properties.Periods {
		if p.IsDaytime && strings.HasPrefix(p.StartTime, date) {
			temp := float64(p.Temperature)
			if city.Unit == types.UnitC {
				temp = (temp - 32) * 5 / 9
			}
			return temp, nil
		}
	}
	return 0, fmt.Errorf("nws: no daytime period for %s", date)
}

// forecastURL resolves and caches the gridpoint forecast URL for a city.
func (s *NWSSource) forecastURL(ctx context.Context, city config.CityConfig) (string, error) {
	s.mu.Lock()
	if u, ok := s.gridURLs[city.Code]; ok {
		s.mu.Unlock()
		return u, nil
	}
	s.mu.Unlock()

	var out struct {
		Properties struct {
			Forecast string `json:"forecast"`
		} `json:"properties"`
	}
	resp, err := s.http.R().SetContext(ctx).SetResult(&out).
		Get(fmt.Sprintf("/points/%.4f,%.4f", city.Lat, city.Lon))
	if err != nil {
		return "", fmt.Errorf("nws points: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("nws points: status %d", resp.StatusCode())
	}
	if out.Properties.Forecast == "" {
		return "", fmt.Errorf("nws points: no forecast url for %s", city.Code)
	}

	s.mu.Lock()
	s.gridURLs[city.Code] = out.Properties.Forecast
	s.mu.Unlock()
	return out.Properties.Forecast, nil
}
