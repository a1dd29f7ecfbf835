// Package ws streams live Kalshi top-of-book quotes over the exchange
// websocket. The feed reconnects on its own and resubscribes to the
// current market set after every reconnect.
package ws

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"weatheredge/pkg/kalshi"
)

const (
	// DefaultURL is the production websocket endpoint.
	DefaultURL = "wss://api.elections.kalshi.com/trade-api/ws/v2"

	defaultPingInterval   = 10 * time.Second
	defaultReconnectDelay = 5 * time.Second
	handshakeTimeout      = 10 * time.Second
	quoteBuffer           = 256
)

// ErrNotConnected is returned when a command needs an open socket.
var ErrNotConnected = errors.New("ws: not connected")

// Feed maintains one ticker subscription over a mutable market set and
// delivers quotes on a channel. Slow consumers drop quotes rather than
// stall the read loop; a dropped top-of-book update is superseded by the
// next one anyway.
type Feed struct {
	url        string
	apiKey     string
	privateKey *rsa.PrivateKey

	pingInterval   time.Duration
	reconnectDelay time.Duration

	quotes chan Quote
	msgID  atomic.Int64

	mu      sync.Mutex
	conn    *websocket.Conn
	markets map[string]bool
	sid     int64

	onError func(error)
}

// FeedOption configures the feed.
type FeedOption func(*Feed)

// WithURL overrides the endpoint.
func WithURL(url string) FeedOption {
	return func(f *Feed) { f.url = url }
}

// WithAuth signs the handshake; the ticker channel also works without.
func WithAuth(apiKey string, key *rsa.PrivateKey) FeedOption {
	return func(f *Feed) {
		f.apiKey = apiKey
		f.privateKey = key
	}
}

// WithErrorHandler receives read-loop and protocol errors.
func WithErrorHandler(fn func(error)) FeedOption {
	return func(f *Feed) { f.onError = fn }
}

// NewFeed builds a feed. Run starts it.
func NewFeed(opts ...FeedOption) *Feed {
	f := &Feed{
		url:            DefaultURL,
		pingInterval:   defaultPingInterval,
		reconnectDelay: defaultReconnectDelay,
		quotes:         make(chan Quote, quoteBuffer),
		markets:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Quotes is the delivery channel. Closed when Run returns.
func (f *Feed) Quotes() <-chan Quote { return f.quotes }

// SetMarkets replaces the watched market set. Takes effect immediately on
// a live connection and on every subsequent reconnect.
func (f *Feed) SetMarkets(ctx context.Context, tickers []string) error {
	f.mu.Lock()
	var added, removed []string
	next := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		next[t] = true
		if !f.markets[t] {
			added = append(added, t)
		}
	}
	for t := range f.markets {
		if !next[t] {
			removed = append(removed, t)
		}
	}
	f.markets = next
	conn, sid := f.conn, f.sid
	f.mu.Unlock()

	if conn == nil || sid == 0 {
		return nil // applied at next (re)connect
	}
	if len(added) > 0 {
		if err := f.update(conn, sid, added, ActionAddMarkets); err != nil {
			return err
		}
	}
	if len(removed) > 0 {
		if err := f.update(conn, sid, removed, ActionDeleteMarkets); err != nil {
			return err
		}
	}
	return nil
}

// Run connects and pumps quotes until ctx is canceled, reconnecting after
// transient failures. Always closes the quote channel on return.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.quotes)
	for {
		if err := f.connectAndRead(ctx); err != nil && f.onError != nil {
			f.onError(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if f.privateKey != nil {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		sig, err := kalshi.Sign(f.privateKey, ts, http.MethodGet, "/trade-api/ws/v2")
		if err != nil {
			return fmt.Errorf("ws sign: %w", err)
		}
		header.Set("KALSHI-ACCESS-KEY", f.apiKey)
		header.Set("KALSHI-ACCESS-SIGNATURE", sig)
		header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.sid = 0
	watched := make([]string, 0, len(f.markets))
	for t := range f.markets {
		watched = append(watched, t)
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.sid = 0
		f.mu.Unlock()
		conn.Close()
	}()

	if len(watched) > 0 {
		if err := f.subscribe(conn, watched); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(ctx, conn, done)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("ws read: %w", err)
		}
		f.handleFrame(data)
	}
}

func (f *Feed) handleFrame(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		f.report(err)
		return
	}
	switch env.Type {
	case TypeSubscribed:
		var sub SubscribedMsg
		if err := json.Unmarshal(env.Msg, &sub); err == nil && sub.Channel == ChannelTicker {
			f.mu.Lock()
			f.sid = sub.SID
			f.mu.Unlock()
		}
	case TypeTicker:
		q, err := ParseQuote(env.Msg)
		if err != nil {
			f.report(err)
			return
		}
		select {
		case f.quotes <- *q:
		default: // drop under backpressure
		}
	case TypeError:
		if e, err := ParseErrorMsg(env.Msg); err == nil {
			f.report(e)
		}
	}
}

func (f *Feed) subscribe(conn *websocket.Conn, tickers []string) error {
	return f.send(conn, CommandSubscribe, SubscribeParams{
		Channels:      []string{ChannelTicker},
		MarketTickers: tickers,
	})
}

func (f *Feed) update(conn *websocket.Conn, sid int64, tickers []string, action UpdateAction) error {
	return f.send(conn, CommandUpdateSubscription, UpdateSubscriptionParams{
		SIDs:          []int64{sid},
		MarketTickers: tickers,
		Action:        action,
	})
}

func (f *Feed) send(conn *websocket.Conn, cmd Command, params any) error {
	if conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	req := Request{ID: f.msgID.Add(1), Cmd: cmd, Params: data}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("ws write: %w", err)
	}
	return nil
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			f.mu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			f.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (f *Feed) report(err error) {
	if f.onError != nil {
		f.onError(err)
	}
}
