package forecast

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

const (
	defaultOpenMeteoURL         = "https://api.open-meteo.com"
	defaultOpenMeteoEnsembleURL = "https://ensemble-api.open-meteo.com"
)

type openMeteoDaily struct {
	Daily struct {
		Time    []string  `json:"time"`
		TempMax []float64 `json:"temperature_2m_max"`
	} `json:"daily"`
}

// OpenMeteoSource is the keyless global forecast source.
type OpenMeteoSource struct {
	http *resty.Client
}

// NewOpenMeteoSource builds the source.
func NewOpenMeteoSource(cfg config.SourcesConfig) *OpenMeteoSource {
	base := cfg.OpenMeteoURL
	if base == "" {
		base = defaultOpenMeteoURL
	}
	return &OpenMeteoSource{http: newSourceClient(base, cfg.RequestTimeout)}
}

func (s *OpenMeteoSource) Name() string { return "open_meteo" }

// FetchHigh implements Source.
func (s *OpenMeteoSource) FetchHigh(ctx context.Context, city config.CityConfig, date string) (float64, error) {
	var out openMeteoDaily
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":         fmt.Sprintf("%.4f", city.Lat),
			"longitude":        fmt.Sprintf("%.4f", city.Lon),
			"daily":            "temperature_2m_max",
			"temperature_unit": unitParam(city.Unit),
			"timezone":         city.Timezone,
			"start_date":       date,
			"end_date":         date,
		}).
		SetResult(&out).
		Get("/v1/forecast")
	if err != nil {
		return 0, fmt.Errorf("open-meteo: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("open-meteo: status %d", resp.StatusCode())
	}
	return pickDay(out.Daily.Time, out.Daily.TempMax, date)
}

// OpenMeteoEnsembleSource averages ensemble members; its spread feeds
// the confidence tiers.
type OpenMeteoEnsembleSource struct {
	http *resty.Client
}

// NewOpenMeteoEnsembleSource builds the source.
func NewOpenMeteoEnsembleSource(cfg config.SourcesConfig) *OpenMeteoEnsembleSource {
	return &OpenMeteoEnsembleSource{
		http: newSourceClient(defaultOpenMeteoEnsembleURL, cfg.RequestTimeout),
	}
}

func (s *OpenMeteoEnsembleSource) Name() string { return "open_meteo_ensemble" }

// FetchHigh implements Source. The ensemble endpoint returns one
// temperature_2m_max series per member; the member mean is the estimate.
func (s *OpenMeteoEnsembleSource) FetchHigh(ctx context.Context, city config.CityConfig, date string) (float64, error) {
	var out map[string]interface{}
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":         fmt.Sprintf("%.4f", city.Lat),
			"longitude":        fmt.Sprintf("%.4f", city.Lon),
			"models":           "gfs_seamless",
			"daily":            "temperature_2m_max",
			"temperature_unit": unitParam(city.Unit),
			"timezone":         city.Timezone,
			"start_date":       date,
			"end_date":         date,
		}).
		SetResult(&out).
		Get("/v1/ensemble")
	if err != nil {
		return 0, fmt.Errorf("open-meteo ensemble: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("open-meteo ensemble: status %d", resp.StatusCode())
	}

	daily, ok := out["daily"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("open-meteo ensemble: missing daily block")
	}

	var sum float64
	var n int
	for key, v := range daily {
		if key == "time" {
			continue
		}
		series, ok := v.([]interface{})
		if !ok || len(series) == 0 {
			continue
		}
		if f, ok := series[0].(float64); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("open-meteo ensemble: no members for %s", date)
	}
	return sum / float64(n), nil
}

func newSourceClient(base string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(time.Second)
}

func unitParam(u types.Unit) string {
	if u == types.UnitC {
		return "celsius"
	}
	return "fahrenheit"
}

func pickDay(times []string, values []float64, date string) (float64, error) {
	for i, ts := range times {
		if ts == date && i < len(values) {
			return values[i], nil
		}
	}
	return 0, fmt.Errorf("no forecast for %s", date)
}
