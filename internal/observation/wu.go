package observation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"weatheredge/internal/config"
	"weatheredge/pkg/types"
)

const defaultWUURL = "https://api.weather.com"

// WUClient reads Weather Underground observations: the historical API
// Polymarket settles against, and current PWS conditions for the fast path.
type WUClient struct {
	http   *resty.Client
	apiKey string
}

// NewWUClient builds the client; methods fail with ErrNoAPIKey when the
// key is missing.
func NewWUClient(cfg config.SourcesConfig) *WUClient {
	base := cfg.WUURL
	if base == "" {
		base = defaultWUURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WUClient{
		http:   resty.New().SetBaseURL(base).SetTimeout(timeout).SetRetryCount(1),
		apiKey: cfg.WUAPIKey,
	}
}

// ErrNoAPIKey marks a WU call attempted without credentials.
var ErrNoAPIKey = fmt.Errorf("wu api key not configured")

// Enabled reports whether the client has credentials.
func (c *WUClient) Enabled() bool { return c.apiKey != "" }

// locationKey builds the historical-API location path segment:
// {ICAO}:9:{ISO_CC}.
func locationKey(icao, country string) string {
	if country == "" {
		country = "US"
	}
	return fmt.Sprintf("%s:9:%s", icao, country)
}

func wuUnits(u types.Unit) string {
	if u == types.UnitC {
		return "m"
	}
	return "e"
}

// DailyHigh fetches the day's high for an ICAO station from the
// historical observations API. max_temp captures sub-hourly peaks when
// present; otherwise the max over the hourly series is used. The value
// is final once the station's local day has ended.
func (c *WUClient) DailyHigh(ctx context.Context, icao, country string, unit types.Unit, date string) (float64, error) {
	if !c.Enabled() {
		return 0, ErrNoAPIKey
	}

	compact := strings.ReplaceAll(date, "-", "")
	var out struct {
		Observations []struct {
			ValidTimeLocal string   `json:"valid_time_local"`
			Temp           *float64 `json:"temp"`
			MaxTemp        *float64 `json:"max_temp"`
		} `json:"observations"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"units":     wuUnits(unit),
			"startDate": compact,
			"endDate":   compact,
			"apiKey":    c.apiKey,
		}).
		SetResult(&out).
		Get(fmt.Sprintf("/v1/location/%s/observations/historical.json", locationKey(icao, country)))
	if err != nil {
		return 0, fmt.Errorf("wu historical: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("wu historical: status %d", resp.StatusCode())
	}
	if len(out.Observations) == 0 {
		return 0, fmt.Errorf("wu historical: no observations for %s on %s", icao, date)
	}

	var high float64
	found := false
	for _, o := range out.Observations {
		if o.MaxTemp != nil && (!found || *o.MaxTemp > high) {
			high = *o.MaxTemp
			found = true
		}
		if o.Temp != nil && (!found || *o.Temp > high) {
			high = *o.Temp
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("wu historical: no temperatures for %s on %s", icao, date)
	}
	return high, nil
}

// PWSReading is one personal-station observation.
type PWSReading struct {
	StationID string
	Temp      float64
	At        time.Time
}

// PWSCurrent fetches the current observation from one personal station.
func (c *WUClient) PWSCurrent(ctx context.Context, stationID string, unit types.Unit) (*PWSReading, error) {
	if !c.Enabled() {
		return nil, ErrNoAPIKey
	}

	var out struct {
		Observations []struct {
			StationID string `json:"stationID"`
			ObsTimeLocal string `json:"obsTimeLocal"`
			Imperial  *struct {
				Temp *float64 `json:"temp"`
			} `json:"imperial"`
			Metric *struct {
				Temp *float64 `json:"temp"`
			} `json:"metric"`
		} `json:"observations"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"stationId": stationID,
			"format":    "json",
			"units":     wuUnits(unit),
			"apiKey":    c.apiKey,
		}).
		SetResult(&out).
		Get("/v2/pws/observations/current")
	if err != nil {
		return nil, fmt.Errorf("pws current %s: %w", stationID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("pws current %s: status %d", stationID, resp.StatusCode())
	}
	if len(out.Observations) == 0 {
		return nil, fmt.Errorf("pws current %s: empty", stationID)
	}

	o := out.Observations[0]
	var temp *float64
	if unit == types.UnitC && o.Metric != nil {
		temp = o.Metric.Temp
	} else if o.Imperial != nil {
		temp = o.Imperial.Temp
	}
	if temp == nil {
		return nil, fmt.Errorf("pws current %s: no temperature", stationID)
	}
	return &PWSReading{StationID: o.StationID, Temp: *temp, At: time.Now().UTC()}, nil
}
