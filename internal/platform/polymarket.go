package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"weatheredge/internal/config"
	"weatheredge/pkg/polymarket"
	"weatheredge/pkg/types"
)

// PolymarketAdapter reads the daily highest-temperature events. One Gamma
// market per range; the order book comes from the CLOB per token.
type PolymarketAdapter struct {
	client *polymarket.Client
	cache  *seriesCache
	log    zerolog.Logger
}

// NewPolymarketAdapter builds the adapter over an existing client.
func NewPolymarketAdapter(client *polymarket.Client, cacheTTL time.Duration, log zerolog.Logger) *PolymarketAdapter {
	return &PolymarketAdapter{
		client: client,
		cache:  newSeriesCache(cacheTTL),
		log:    log.With().Str("component", "polymarket_adapter").Logger(),
	}
}

// Platform implements Adapter.
func (a *PolymarketAdapter) Platform() types.Platform { return types.PlatformPolymarket }

// ResolutionSource implements Adapter. Polymarket weather settles against
// Weather Underground historical observations.
func (a *PolymarketAdapter) ResolutionSource() string { return "wu_historical" }

// EntryFee implements Adapter. Polymarket weather markets are fee-free.
func (a *PolymarketAdapter) EntryFee(float64) float64 { return 0 }

// ParseRange implements Adapter.
func (a *PolymarketAdapter) ParseRange(label string, unit types.Unit) (types.TempRange, error) {
	return ParseRange(label, unit)
}

// EventSlug builds the daily event slug fragment, e.g.
// highest-temperature-in-nyc-on-august-24.
func (a *PolymarketAdapter) EventSlug(city config.CityConfig, date string) (string, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("event slug date %q: %w", date, err)
	}
	citySlug := strings.ReplaceAll(strings.ToLower(city.Name), " ", "-")
	return fmt.Sprintf("highest-temperature-in-%s-on-%s-%d",
		citySlug, strings.ToLower(d.Format("January")), d.Day()), nil
}

// FetchMarkets implements Adapter.
func (a *PolymarketAdapter) FetchMarkets(ctx context.Context, city config.CityConfig, date string) ([]types.Market, error) {
	slug, err := a.EventSlug(city, date)
	if err != nil {
		return nil, err
	}
	if cached, ok := a.cache.get(slug); ok {
		return cached, nil
	}

	raw, err := a.client.SearchMarkets(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("fetch polymarket markets %s: %w", slug, err)
	}

	markets := make([]types.Market, 0, len(raw))
	for _, m := range raw {
		if m.Closed || !m.Active {
			continue
		}

		label := m.GroupItemTitle
		if label == "" {
			label = m.Question
		}
		r, perr := ParseRange(label, city.Unit)
		if perr != nil {
			a.log.Warn().Str("market", m.Slug).Str("label", label).
				Msg("unparseable range skipped")
			continue
		}

		bidDepth, askDepth := a.bookDepth(ctx, &m)
		closeTime, _ := time.Parse(time.RFC3339, m.EndDate)

		markets = append(markets, types.Market{
			Platform:   types.PlatformPolymarket,
			ID:         m.ConditionID,
			SeriesID:   slug,
			City:       city.Code,
			TargetDate: date,
			Range:      r,
			RawLabel:   label,
			BestBid:    m.BestBid,
			BestAsk:    m.BestAsk,
			Spread:     m.Spread,
			BidDepth:   bidDepth,
			AskDepth:   askDepth,
			Volume:     m.VolumeNum,
			CloseTime:  closeTime,
		})
	}

	a.cache.put(slug, markets)
	return markets, nil
}

// bookDepth reads top-of-book size for the YES token. Depth is advisory
// (volume gating) so a failed book read degrades to zero, not an error.
func (a *PolymarketAdapter) bookDepth(ctx context.Context, m *polymarket.GammaMarket) (bid, ask float64) {
	tokens, err := m.TokenIDs()
	if err != nil || len(tokens) == 0 {
		return 0, 0
	}
	book, err := a.client.GetBook(ctx, tokens[0])
	if err != nil {
		a.log.Debug().Err(err).Str("market", m.Slug).Msg("book read failed")
		return 0, 0
	}
	_, bidSize, _, askSize := book.TopOfBook()
	return bidSize, askSize
}
