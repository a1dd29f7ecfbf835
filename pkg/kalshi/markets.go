package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Market represents a Kalshi market. Prices are in cents.
type Market struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	MarketType     string  `json:"market_type"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	YesSubTitle    string  `json:"yes_sub_title"`
	NoSubTitle     string  `json:"no_sub_title"`
	Status         string  `json:"status"`
	YesBid         int     `json:"yes_bid"`
	YesAsk         int     `json:"yes_ask"`
	NoBid          int     `json:"no_bid"`
	NoAsk          int     `json:"no_ask"`
	LastPrice      int     `json:"last_price"`
	Volume         int     `json:"volume"`
	Volume24H      int     `json:"volume_24h"`
	Liquidity      int     `json:"liquidity"`
	OpenInterest   int     `json:"open_interest"`
	Result         string  `json:"result"`
	CapStrike      float64 `json:"cap_strike"`
	FloorStrike    float64 `json:"floor_strike"`
	ExpirationTime string  `json:"expiration_time"`
	CloseTime      string  `json:"close_time"`
	OpenTime       string  `json:"open_time"`
	Category       string  `json:"category"`
}

// Event represents a Kalshi event (contains multiple markets).
type Event struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	Mutually     bool   `json:"mutually_exclusive"`
	Category     string `json:"category"`
	SubTitle     string `json:"sub_title"`
	StrikeDate   string `json:"strike_date"`
}

// GetMarketsResponse represents one page of markets.
type GetMarketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// GetEventResponse represents a response from getting an event.
type GetEventResponse struct {
	Event   Event    `json:"event"`
	Markets []Market `json:"markets"`
}

// Orderbook is top-of-book depth per side. Each level is [price_cents, count].
type Orderbook struct {
	Yes [][]int `json:"yes"`
	No  [][]int `json:"no"`
}

// GetMarket retrieves a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	data, err := c.Get(ctx, fmt.Sprintf("/markets/%s", ticker))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Market Market `json:"market"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp.Market, nil
}

// GetMarkets retrieves every market for an event, following cursors until
// exhausted. Stopping at page 1 silently drops brackets.
func (c *Client) GetMarkets(ctx context.Context, eventTicker string) ([]Market, error) {
	var (
		all    []Market
		cursor string
	)
	for {
		q := url.Values{"limit": {"200"}}
		if eventTicker != "" {
			q.Set("event_ticker", eventTicker)
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		data, err := c.Get(ctx, "/markets?"+q.Encode())
		if err != nil {
			return nil, err
		}

		var resp GetMarketsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		all = append(all, resp.Markets...)

		if resp.Cursor == "" || len(resp.Markets) == 0 {
			return all, nil
		}
		cursor = resp.Cursor
	}
}

// GetEvent retrieves an event and its markets.
func (c *Client) GetEvent(ctx context.Context, eventTicker string) (*Event, []Market, error) {
	data, err := c.Get(ctx, fmt.Sprintf("/events/%s", eventTicker))
	if err != nil {
		return nil, nil, err
	}

	var resp GetEventResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp.Event, resp.Markets, nil
}

// GetOrderbook retrieves top-of-book depth for a market.
func (c *Client) GetOrderbook(ctx context.Context, ticker string, depth int) (*Orderbook, error) {
	data, err := c.Get(ctx, fmt.Sprintf("/markets/%s/orderbook?depth=%d", ticker, depth))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Orderbook Orderbook `json:"orderbook"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp.Orderbook, nil
}
