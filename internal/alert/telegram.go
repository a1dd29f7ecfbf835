// Package alert pushes trade and settlement events to Telegram. Sends are
// queued and rate limited so a busy cycle cannot trip the bot API.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"weatheredge/internal/config"
)

const telegramAPI = "https://api.telegram.org"

// Bot is the Telegram sink. A disabled bot swallows messages silently so
// callers never branch on configuration.
type Bot struct {
	client  *resty.Client
	token   string
	chatID  string
	limiter *rate.Limiter
	log     zerolog.Logger

	queue chan string
	done  chan struct{}
	wg    sync.WaitGroup

	enabled bool
}

// New builds the bot. Start must be called before messages flow.
func New(cfg config.AlertConfig, log zerolog.Logger) *Bot {
	interval := cfg.QueueInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(telegramAPI).
		SetTimeout(cfg.SendTimeout).
		SetRetryCount(1)

	return &Bot{
		client:  client,
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(rate.Every(interval), 3),
		log:     log.With().Str("component", "alert").Logger(),
		queue:   make(chan string, 64),
		done:    make(chan struct{}),
		enabled: cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
	}
}

// Start launches the drain worker. No-op when disabled.
func (b *Bot) Start(ctx context.Context) {
	if !b.enabled {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case msg := <-b.queue:
				if err := b.limiter.Wait(ctx); err != nil {
					return
				}
				b.send(ctx, msg)
			case <-ctx.Done():
				return
			case <-b.done:
				return
			}
		}
	}()
}

// Notify queues a formatted message. Never blocks: when the queue is full
// the message is dropped with a log line, since a wedged alert channel
// must not stall the trading loop.
func (b *Bot) Notify(format string, args ...interface{}) {
	if !b.enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	select {
	case b.queue <- msg:
	default:
		b.log.Warn().Str("msg", msg).Msg("alert queue full, message dropped")
	}
}

// Close flushes whatever is queued, bounded by a short deadline, then
// stops the worker.
func (b *Bot) Close() {
	if !b.enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		select {
		case msg := <-b.queue:
			b.send(ctx, msg)
		default:
			close(b.done)
			b.wg.Wait()
			return
		}
		if ctx.Err() != nil {
			close(b.done)
			b.wg.Wait()
			return
		}
	}
}

func (b *Bot) send(ctx context.Context, text string) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": b.chatID,
			"text":    text,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", b.token))
	if err != nil {
		b.log.Warn().Err(err).Msg("telegram send failed")
		return
	}
	if resp.IsError() {
		b.log.Warn().Int("status", resp.StatusCode()).Msg("telegram rejected message")
	}
}
