// Package polymarket provides read-only clients for the Polymarket Gamma
// (market discovery) and CLOB (order book) APIs. Weather paper trading never
// places orders, so no auth layer is carried.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// GammaBaseURL is the market-discovery API.
	GammaBaseURL = "https://gamma-api.polymarket.com"

	// CLOBBaseURL is the order-book API.
	CLOBBaseURL = "https://clob.polymarket.com"

	gammaPageSize = 100
)

// GammaMarket is the JSON shape returned by the Gamma API. Several numeric
// fields arrive as JSON strings; several list fields arrive as JSON-encoded
// strings and need a second decode.
type GammaMarket struct {
	ID              string  `json:"id"`
	Question        string  `json:"question"`
	ConditionID     string  `json:"conditionId"`
	Slug            string  `json:"slug"`
	Active          bool    `json:"active"`
	Closed          bool    `json:"closed"`
	AcceptingOrders bool    `json:"acceptingOrders"`
	EndDate         string  `json:"endDate"`
	Liquidity       string  `json:"liquidity"`
	Volume24hr      float64 `json:"volume24hr"`
	VolumeNum       float64 `json:"volumeNum"`
	Outcomes        string  `json:"outcomes"`
	OutcomePrices   string  `json:"outcomePrices"`
	ClobTokenIds    string  `json:"clobTokenIds"`
	Spread          float64 `json:"spread"`
	BestBid         float64 `json:"bestBid"`
	BestAsk         float64 `json:"bestAsk"`
	GroupItemTitle  string  `json:"groupItemTitle"`
	EventSlug       string  `json:"eventSlug"`
}

// TokenIDs decodes the clobTokenIds field: [yesToken, noToken].
func (m *GammaMarket) TokenIDs() ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIds), &ids); err != nil {
		return nil, fmt.Errorf("decode clobTokenIds: %w", err)
	}
	return ids, nil
}

// LiquidityNum parses the string-encoded liquidity field, 0 when absent.
func (m *GammaMarket) LiquidityNum() float64 {
	f, err := strconv.ParseFloat(m.Liquidity, 64)
	if err != nil {
		return 0
	}
	return f
}

// BookLevel is one order-book level; price and size arrive as strings.
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Book is the L2 order book for one token.
type Book struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// TopOfBook returns best bid/ask and their sizes. Polymarket books list
// bids ascending and asks descending, so the best level is the last one.
func (b *Book) TopOfBook() (bid, bidSize, ask, askSize float64) {
	if n := len(b.Bids); n > 0 {
		bid, _ = strconv.ParseFloat(b.Bids[n-1].Price, 64)
		bidSize, _ = strconv.ParseFloat(b.Bids[n-1].Size, 64)
	}
	if n := len(b.Asks); n > 0 {
		ask, _ = strconv.ParseFloat(b.Asks[n-1].Price, 64)
		askSize, _ = strconv.ParseFloat(b.Asks[n-1].Size, 64)
	}
	return bid, bidSize, ask, askSize
}

// Client wraps the Gamma and CLOB endpoints.
type Client struct {
	gamma *resty.Client
	clob  *resty.Client
}

// Option configures the client.
type Option func(*Client)

// WithGammaBaseURL overrides the Gamma API base URL.
func WithGammaBaseURL(url string) Option {
	return func(c *Client) { c.gamma.SetBaseURL(url) }
}

// WithCLOBBaseURL overrides the CLOB API base URL.
func WithCLOBBaseURL(url string) Option {
	return func(c *Client) { c.clob.SetBaseURL(url) }
}

// WithTimeout sets the per-request timeout on both endpoints.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.gamma.SetTimeout(d)
		c.clob.SetTimeout(d)
	}
}

// New creates a Polymarket client.
func New(opts ...Option) *Client {
	c := &Client{
		gamma: resty.New().
			SetBaseURL(GammaBaseURL).
			SetTimeout(15 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second),
		clob: resty.New().
			SetBaseURL(CLOBBaseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchMarkets pages through active Gamma markets matching a slug fragment,
// following offsets until a short page. Weather events list one market per
// temperature range, so a single event routinely spans pages.
func (c *Client) SearchMarkets(ctx context.Context, slugContains string) ([]GammaMarket, error) {
	var all []GammaMarket
	for offset := 0; ; offset += gammaPageSize {
		var page []GammaMarket
		resp, err := c.gamma.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"active":        "true",
				"closed":        "false",
				"slug_contains": slugContains,
				"limit":         strconv.Itoa(gammaPageSize),
				"offset":        strconv.Itoa(offset),
			}).
			SetResult(&page).
			Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("gamma markets: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("gamma markets: status %d: %s", resp.StatusCode(), resp.String())
		}

		all = append(all, page...)
		if len(page) < gammaPageSize {
			return all, nil
		}
	}
}

// GetBook fetches the L2 book for one token.
func (c *Client) GetBook(ctx context.Context, tokenID string) (*Book, error) {
	var book Book
	resp, err := c.clob.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&book).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &book, nil
}
