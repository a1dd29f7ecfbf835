package ws

import (
	"encoding/json"
	"fmt"
)

// Command is a client-to-server command.
type Command string

const (
	CommandSubscribe          Command = "subscribe"
	CommandUnsubscribe        Command = "unsubscribe"
	CommandUpdateSubscription Command = "update_subscription"
)

// UpdateAction adjusts the market set of an existing subscription.
type UpdateAction string

const (
	ActionAddMarkets    UpdateAction = "add_markets"
	ActionDeleteMarkets UpdateAction = "delete_markets"
)

// ChannelTicker is the price feed: one message per top-of-book change.
const ChannelTicker = "ticker"

// Request is a client command envelope.
type Request struct {
	ID     int64           `json:"id"`
	Cmd    Command         `json:"cmd"`
	Params json.RawMessage `json:"params,omitempty"`
}

// SubscribeParams opens a channel over a set of markets.
type SubscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// UnsubscribeParams cancels subscriptions by SID.
type UnsubscribeParams struct {
	SIDs []int64 `json:"sids"`
}

// UpdateSubscriptionParams edits the market list of a subscription.
type UpdateSubscriptionParams struct {
	SIDs          []int64      `json:"sids"`
	MarketTickers []string     `json:"market_tickers"`
	Action        UpdateAction `json:"action"`
}

// Envelope is the server message frame.
type Envelope struct {
	ID   int64           `json:"id,omitempty"`
	SID  int64           `json:"sid,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg,omitempty"`
}

// Server frame types.
const (
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeError        = "error"
	TypeTicker       = "ticker"
)

// SubscribedMsg acknowledges a subscription.
type SubscribedMsg struct {
	Channel string `json:"channel"`
	SID     int64  `json:"sid"`
}

// ErrorMsg is a server-side rejection.
type ErrorMsg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e ErrorMsg) Error() string {
	return fmt.Sprintf("kalshi ws error %d: %s", e.Code, e.Msg)
}

// tickerMsg is the raw ticker payload. Prices are in cents.
type tickerMsg struct {
	MarketTicker string `json:"market_ticker"`
	Price        int    `json:"price"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	Volume       int    `json:"volume"`
	OpenInterest int    `json:"open_interest"`
	TS           int64  `json:"ts"`
}

// Quote is one top-of-book update, converted to dollars.
type Quote struct {
	MarketTicker string
	YesBid       float64
	YesAsk       float64
	LastPrice    float64
	Volume       int
	UnixTS       int64
}

// ParseEnvelope decodes one server frame.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse ws frame: %w", err)
	}
	return &env, nil
}

// ParseQuote decodes a ticker frame's payload.
func ParseQuote(msg json.RawMessage) (*Quote, error) {
	var t tickerMsg
	if err := json.Unmarshal(msg, &t); err != nil {
		return nil, fmt.Errorf("parse ticker: %w", err)
	}
	return &Quote{
		MarketTicker: t.MarketTicker,
		YesBid:       float64(t.YesBid) / 100,
		YesAsk:       float64(t.YesAsk) / 100,
		LastPrice:    float64(t.Price) / 100,
		Volume:       t.Volume,
		UnixTS:       t.TS,
	}, nil
}

// ParseErrorMsg decodes an error frame's payload.
func ParseErrorMsg(msg json.RawMessage) (*ErrorMsg, error) {
	var e ErrorMsg
	if err := json.Unmarshal(msg, &e); err != nil {
		return nil, fmt.Errorf("parse error msg: %w", err)
	}
	return &e, nil
}
