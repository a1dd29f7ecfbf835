// Package observation polls ground truth: hourly airport reports, the
// commercial observations API, and near-real-time personal weather
// stations. It maintains the per-day running highs the fast paths and the
// monitor key off.
package observation

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

const defaultMetarURL = "https://aviationweather.gov"

// MetarReading is one current airport observation.
type MetarReading struct {
	StationID string
	Temp      float64 // station-unit temperature
	At        time.Time
}

// MetarClient batch-fetches current METAR observations.
type MetarClient struct {
	http *resty.Client
}

// NewMetarClient builds the client.
func NewMetarClient(cfg config.SourcesConfig) *MetarClient {
	base := cfg.MetarURL
	if base == "" {
		base = defaultMetarURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MetarClient{
		http: resty.New().SetBaseURL(base).SetTimeout(timeout).SetRetryCount(1),
	}
}

// FetchCurrent batch-fetches all stations in one request, keyed by
// station id. Temperatures are converted from METAR Celsius into unit.
func (c *MetarClient) FetchCurrent(ctx context.Context, stationIDs []string, unit types.Unit) (map[string]MetarReading, error) {
	if len(stationIDs) == 0 {
		return nil, nil
	}

	var raw []struct {
		ICAOID     string   `json:"icaoId"`
		Temp       *float64 `json:"temp"` // Celsius
		ReportTime string   `json:"reportTime"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":    strings.Join(stationIDs, ","),
			"format": "json",
		}).
		SetResult(&raw).
		Get("/api/data/metar")
	if err != nil {
		return nil, fmt.Errorf("metar fetch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("metar fetch: status %d", resp.StatusCode())
	}

	out := make(map[string]MetarReading, len(raw))
	for _, r := range raw {
		if r.Temp == nil {
			continue
		}
		temp := *r.Temp
		if unit == types.UnitF {
			temp = math.Round(temp*9/5 + 32)
		}
		at, err := time.Parse("2006-01-02 15:04:05", r.ReportTime)
		if err != nil {
			at = time.Now().UTC()
		}
		out[r.ICAOID] = MetarReading{StationID: r.ICAOID, Temp: temp, At: at}
	}
	return out, nil
}
