package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"weatheredge/internal/alert"
	"weatheredge/internal/config"
	"weatheredge/internal/coordinator"
	"weatheredge/internal/executor"
	"weatheredge/internal/forecast"
	"weatheredge/internal/monitor"
	"weatheredge/internal/observation"
	"weatheredge/internal/platform"
	"weatheredge/internal/resolver"
	"weatheredge/internal/scanner"
	"weatheredge/internal/storage"
	"weatheredge/pkg/kalshi"
	"weatheredge/pkg/kalshi/ws"
	"weatheredge/pkg/polymarket"
	"weatheredge/pkg/types"
)

// app wires the engine components. Every command builds one and tears it
// down with Close.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	store         *storage.Store
	alerts        *alert.Bot
	engine        *forecast.Engine
	scanner       *scanner.Scanner
	gw            *scanner.GWScanner
	executor      *executor.Executor
	monitor       *monitor.Monitor
	resolver      *resolver.Resolver
	poller        *observation.Poller
	wu            *observation.WUClient
	kalshiAdapter *platform.KalshiAdapter
	feed          *ws.Feed
}

func buildApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	store, err := storage.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store}
	a.alerts = alert.New(cfg.Alerts, log)

	var adapters []platform.Adapter
	if cfg.Platforms.Kalshi.Enabled {
		opts := []kalshi.Option{kalshi.WithBaseURL(cfg.Platforms.Kalshi.BaseURL)}
		apiKey := os.Getenv("WEDGE_KALSHI_API_KEY")
		keyPath := os.Getenv("WEDGE_KALSHI_PRIVATE_KEY_PATH")
		if apiKey != "" && keyPath != "" {
			key, err := kalshi.LoadPrivateKey(keyPath)
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("kalshi credentials: %w", err)
			}
			opts = append(opts, kalshi.WithAuth(apiKey, key))
			a.feed = ws.NewFeed(
				ws.WithURL(cfg.Platforms.Kalshi.WSURL),
				ws.WithAuth(apiKey, key),
				ws.WithErrorHandler(func(err error) {
					log.Warn().Err(err).Msg("kalshi feed")
				}),
			)
		}
		client := kalshi.New(opts...)
		ttl := time.Duration(cfg.Platforms.Kalshi.CacheTTLMin) * time.Minute
		a.kalshiAdapter = platform.NewKalshiAdapter(client, ttl, log)
		adapters = append(adapters, a.kalshiAdapter)
	}
	if cfg.Platforms.Polymarket.Enabled {
		client := polymarket.New(
			polymarket.WithGammaBaseURL(cfg.Platforms.Polymarket.BaseURL),
			polymarket.WithTimeout(cfg.Sources.RequestTimeout),
		)
		ttl := time.Duration(cfg.Platforms.Polymarket.CacheTTLMin) * time.Minute
		adapters = append(adapters, platform.NewPolymarketAdapter(client, ttl, log))
	}
	if len(adapters) == 0 {
		store.Close()
		return nil, errors.New("no platforms enabled")
	}

	sources := []forecast.Source{
		forecast.WithBreaker(forecast.NewOpenMeteoSource(cfg.Sources)),
		forecast.WithBreaker(forecast.NewOpenMeteoEnsembleSource(cfg.Sources)),
		forecast.WithBreaker(forecast.NewNWSSource(cfg.Sources)),
		forecast.WithBreaker(forecast.NewTomorrowSource(cfg.Sources)),
		forecast.WithBreaker(forecast.NewWUSource(cfg.Sources)),
	}
	a.engine = forecast.NewEngine(store, sources, cfg.Forecast, log)

	a.wu = observation.NewWUClient(cfg.Sources)
	metar := observation.NewMetarClient(cfg.Sources)
	a.poller = observation.NewPoller(store, metar, a.wu, cfg.Cities, cfg.ObsPath, log)

	a.scanner = scanner.New(cfg, store, a.engine, adapters, log)
	a.gw = scanner.NewGW(cfg, store, adapters, log)
	a.executor = executor.New(cfg, store, adapters, a.alerts, log)
	a.monitor = monitor.New(cfg, store, a.engine, adapters, a.alerts, log)
	a.resolver = resolver.New(cfg, store, a.kalshiAdapter, a.wu, a.alerts, log)

	return a, nil
}

// Run starts the long-lived loops: coordinator, health server and, when
// credentials allow, the Kalshi price feed. Blocks until ctx cancels.
func (a *app) Run(ctx context.Context) error {
	a.alerts.Start(ctx)
	mode := "live paper trading"
	if a.cfg.DryRun {
		mode = "dry run"
	}
	a.alerts.Notify("STARTED weatheredge: %d cities, %s", len(a.cfg.Cities), mode)
	defer func() {
		if s, err := a.store.Summary(context.Background()); err == nil {
			a.alerts.Notify("STOPPED weatheredge: %d trades (%d open), pnl %+.2f",
				s.TotalTrades, s.OpenTrades, s.TotalPnL.Float64())
		}
	}()

	coord := coordinator.New(coordinator.Deps{
		Config:   a.cfg,
		Store:    a.store,
		Scanner:  a.scanner,
		GW:       a.gw,
		Executor: a.executor,
		Monitor:  a.monitor,
		Resolver: a.resolver,
		Poller:   a.poller,
	}, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return a.serveHTTP(gctx) })
	if a.feed != nil {
		g.Go(func() error { return a.feed.Run(gctx) })
		g.Go(func() error {
			a.consumeFeed(gctx, coord)
			return nil
		})
		g.Go(func() error {
			a.syncFeedMarkets(gctx)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		a.log.Info().Msg("engine stopped")
		return nil
	}
	return err
}

// consumeFeed turns live quote jumps into early monitor passes: a bid at
// or above the loosest take-profit tier may be an exit we should not sit
// on until the next cycle.
func (a *app) consumeFeed(ctx context.Context, coord *coordinator.Coordinator) {
	trigger := 1.0
	for _, tier := range a.cfg.Monitor.TakeProfitTiers {
		if tier.MinBid < trigger {
			trigger = tier.MinBid
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-a.feed.Quotes():
			if !ok {
				return
			}
			if q.YesBid >= trigger {
				go coord.TriggerMonitor(ctx)
			}
		}
	}
}

// syncFeedMarkets keeps the feed subscription aligned with open Kalshi
// positions.
func (a *app) syncFeedMarkets(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		trades, err := a.store.OpenTrades(ctx)
		if err == nil {
			var tickers []string
			for _, t := range trades {
				if t.Platform == types.PlatformKalshi {
					tickers = append(tickers, t.MarketID)
				}
			}
			if err := a.feed.SetMarkets(ctx, tickers); err != nil {
				a.log.Warn().Err(err).Msg("feed subscription update failed")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// serveHTTP exposes liveness and the P&L summary for dashboards.
func (a *app) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		s, err := a.store.Summary(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_trades": s.TotalTrades,
			"open_trades":  s.OpenTrades,
			"wins":         s.Wins,
			"losses":       s.Losses,
			"deployed":     s.DeployedCost.Float64(),
			"pnl":          s.TotalPnL.Float64(),
			"fees":         s.TotalFees.Float64(),
		})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.log.Info().Int("port", a.cfg.HTTPPort).Msg("http server listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// Close tears down in reverse dependency order.
func (a *app) Close() {
	a.alerts.Close()
	a.store.Close()
}
