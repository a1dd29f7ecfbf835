package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"weatheredge/internal/config"
	"weatheredge/pkg/kalshi"
	"weatheredge/pkg/types"
)

// KalshiAdapter reads daily-high temperature events. One event per
// (city, date); brackets arrive as separate markets under the event.
type KalshiAdapter struct {
	client *kalshi.Client
	cache  *seriesCache
	log    zerolog.Logger
}

// NewKalshiAdapter builds the adapter over an existing client.
func NewKalshiAdapter(client *kalshi.Client, cacheTTL time.Duration, log zerolog.Logger) *KalshiAdapter {
	return &KalshiAdapter{
		client: client,
		cache:  newSeriesCache(cacheTTL),
		log:    log.With().Str("component", "kalshi_adapter").Logger(),
	}
}

// Platform implements Adapter.
func (a *KalshiAdapter) Platform() types.Platform { return types.PlatformKalshi }

// ResolutionSource implements Adapter. Kalshi settles daily highs against
// the NWS climatological report.
func (a *KalshiAdapter) ResolutionSource() string { return "nws_cli" }

// EntryFee implements Adapter.
func (a *KalshiAdapter) EntryFee(ask float64) float64 { return kalshiEntryFee(ask) }

// ParseRange implements Adapter.
func (a *KalshiAdapter) ParseRange(label string, unit types.Unit) (types.TempRange, error) {
	return ParseRange(label, unit)
}

// EventTicker builds the daily event ticker, e.g. KXHIGHLAX-26AUG24.
func (a *KalshiAdapter) EventTicker(city config.CityConfig, date string) (string, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("event ticker date %q: %w", date, err)
	}
	return fmt.Sprintf("%s-%s", city.KalshiEventPrefix, strings.ToUpper(d.Format("06Jan02"))), nil
}

// SettledHigh reads the event's settled bracket and returns the high it
// implies: the winning bracket's midpoint, or half a degree inside the
// closed bound for open-ended winners. The second return is false until
// the platform has settled the event.
func (a *KalshiAdapter) SettledHigh(ctx context.Context, city config.CityConfig, date string) (float64, bool, error) {
	if city.KalshiEventPrefix == "" {
		return 0, false, nil
	}
	event, err := a.EventTicker(city, date)
	if err != nil {
		return 0, false, err
	}
	raw, err := a.client.GetMarkets(ctx, event)
	if err != nil {
		return 0, false, fmt.Errorf("fetch settled markets %s: %w", event, err)
	}

	for _, m := range raw {
		if m.Result != "yes" {
			continue
		}
		r, ok := ParseKalshiTicker(m.Ticker, m.Title, city.Unit)
		if !ok {
			var perr error
			r, perr = ParseRange(m.YesSubTitle, city.Unit)
			if perr != nil {
				continue
			}
		}
		switch {
		case r.Min != nil && r.Max != nil:
			return (*r.Min + *r.Max) / 2, true, nil
		case r.Min != nil:
			return *r.Min + 0.5, true, nil
		case r.Max != nil:
			return *r.Max - 0.5, true, nil
		}
	}
	return 0, false, nil
}

// FetchMarkets implements Adapter.
func (a *KalshiAdapter) FetchMarkets(ctx context.Context, city config.CityConfig, date string) ([]types.Market, error) {
	if city.KalshiEventPrefix == "" {
		return nil, nil
	}

	event, err := a.EventTicker(city, date)
	if err != nil {
		return nil, err
	}
	if cached, ok := a.cache.get(event); ok {
		return cached, nil
	}

	raw, err := a.client.GetMarkets(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("fetch kalshi markets %s: %w", event, err)
	}

	markets := make([]types.Market, 0, len(raw))
	for _, m := range raw {
		if m.Status != "active" {
			continue
		}
		r, ok := ParseKalshiTicker(m.Ticker, m.Title, city.Unit)
		if !ok {
			// Fall back to the subtitle label for non-standard tickers.
			var perr error
			r, perr = ParseRange(m.YesSubTitle, city.Unit)
			if perr != nil {
				a.log.Warn().Str("ticker", m.Ticker).Str("label", m.YesSubTitle).
					Msg("unparseable bracket skipped")
				continue
			}
		}

		bid := float64(m.YesBid) / 100
		ask := float64(m.YesAsk) / 100
		closeTime, _ := time.Parse(time.RFC3339, m.CloseTime)

		markets = append(markets, types.Market{
			Platform:   types.PlatformKalshi,
			ID:         m.Ticker,
			SeriesID:   event,
			City:       city.Code,
			TargetDate: date,
			Range:      r,
			RawLabel:   m.YesSubTitle,
			BestBid:    bid,
			BestAsk:    ask,
			Spread:     ask - bid,
			BidDepth:   float64(m.Liquidity) / 100,
			AskDepth:   float64(m.Liquidity) / 100,
			Volume:     float64(m.Volume),
			CloseTime:  closeTime,
		})
	}

	a.cache.put(event, markets)
	return markets, nil
}
