// Package coordinator schedules the engine: the main scan cycle on a cron,
// the observation poll loop, and the guaranteed-win fast scan that consumes
// boundary-crossing events.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"weatheredge/internal/config"
	"weatheredge/internal/executor"
	"weatheredge/internal/monitor"
	"weatheredge/internal/observation"
	"weatheredge/internal/resolver"
	"weatheredge/internal/scanner"
	"weatheredge/internal/storage"
)

// Deps carries the engine components. All fields except Feed are required.
type Deps struct {
	Config   *config.Config
	Store    *storage.Store
	Scanner  *scanner.Scanner
	GW       *scanner.GWScanner
	Executor *executor.Executor
	Monitor  *monitor.Monitor
	Resolver *resolver.Resolver
	Poller   *observation.Poller
}

// Coordinator owns the run loops. One instance per process.
type Coordinator struct {
	deps Deps
	log  zerolog.Logger

	cron *cron.Cron

	mu      sync.Mutex
	pending []observation.PendingEvent

	triggerMu   sync.Mutex
	lastTrigger time.Time

	cycleMu    sync.Mutex
	cycleCount int64
}

// New builds the coordinator.
func New(deps Deps, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		deps: deps,
		log:  log.With().Str("component", "coordinator").Logger(),
	}
}

// Run starts all loops and blocks until ctx is canceled.
func (c *Coordinator) Run(ctx context.Context) error {
	cfg := c.deps.Config

	cronLog := cronLogger{c.log}
	c.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLog),
		cron.Recover(cronLog),
	))

	spec := fmt.Sprintf("@every %s", cfg.CycleInterval())
	if _, err := c.cron.AddFunc(spec, func() { c.runCycle(ctx) }); err != nil {
		return fmt.Errorf("schedule main cycle: %w", err)
	}
	c.cron.Start()
	defer func() {
		stopCtx := c.cron.Stop()
		<-stopCtx.Done()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.observationLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.gwLoop(ctx)
	}()

	// First cycle runs immediately so a restart doesn't wait a full period.
	c.runCycle(ctx)

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// runCycle executes one full pass: scan, execute, monitor, resolve. Each
// stage gets its own failure boundary; a broken stage never blocks the rest.
func (c *Coordinator) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()
	c.cycleCount++
	start := time.Now()
	log := c.log.With().Int64("cycle", c.cycleCount).Logger()

	cal, err := scanner.LoadCycleCalibration(ctx, c.deps.Store, c.deps.Config.Calibration)
	if err != nil {
		log.Error().Err(err).Msg("calibration load failed, pricing uncorrected")
		cal = &scanner.CycleCalibration{}
	}

	candidates, err := c.deps.Scanner.ScanCycle(ctx, cal)
	if err != nil {
		log.Error().Err(err).Msg("scan failed")
	}
	if len(candidates) > 0 {
		entered, err := c.deps.Executor.Execute(ctx, candidates)
		if err != nil {
			log.Error().Err(err).Msg("execution failed")
		} else if entered > 0 {
			log.Info().Int("entered", entered).Msg("positions opened")
		}
	}

	if exits, err := c.deps.Monitor.Cycle(ctx, cal); err != nil {
		log.Error().Err(err).Msg("monitor pass failed")
	} else if exits > 0 {
		log.Info().Int("exits", exits).Msg("positions closed")
	}

	if err := c.deps.Resolver.Cycle(ctx); err != nil {
		log.Error().Err(err).Msg("resolver pass failed")
	}

	log.Info().Dur("took", time.Since(start)).Int("candidates", len(candidates)).Msg("cycle done")
}

// observationLoop polls station readings on a short interval, tightening
// during the configured peak window when daily highs are usually set.
func (c *Coordinator) observationLoop(ctx context.Context) {
	cfg := c.deps.Config
	for {
		interval := time.Duration(cfg.Scheduling.ObservationPollSeconds) * time.Second
		if cfg.PeakHours(time.Now()) {
			interval = time.Duration(cfg.Scheduling.ObservationPollPeakSeconds) * time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		events, err := c.deps.Poller.PollOnce(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("observation poll failed")
			continue
		}
		if len(events) > 0 {
			c.mu.Lock()
			c.pending = append(c.pending, events...)
			c.mu.Unlock()
			c.log.Info().Int("events", len(events)).Msg("boundary crossings queued")
		}
	}
}

// gwLoop drains pending boundary events into the guaranteed-win fast scan.
func (c *Coordinator) gwLoop(ctx context.Context) {
	interval := time.Duration(c.deps.Config.Scheduling.GuaranteedWinScanSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		events := c.pending
		c.pending = nil
		c.mu.Unlock()
		if len(events) == 0 {
			continue
		}

		candidates, err := c.deps.GW.FastScan(ctx, events)
		if err != nil {
			c.log.Warn().Err(err).Msg("guaranteed-win scan failed")
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		entered, err := c.deps.Executor.Execute(ctx, candidates)
		if err != nil {
			c.log.Error().Err(err).Msg("guaranteed-win execution failed")
			continue
		}
		if entered > 0 {
			c.log.Info().Int("entered", entered).Msg("guaranteed-win positions opened")
		}
	}
}

// TriggerMonitor runs an early monitor pass, throttled so a burst of
// websocket quotes collapses into one evaluation.
func (c *Coordinator) TriggerMonitor(ctx context.Context) {
	c.triggerMu.Lock()
	if time.Since(c.lastTrigger) < 30*time.Second {
		c.triggerMu.Unlock()
		return
	}
	c.lastTrigger = time.Now()
	c.triggerMu.Unlock()

	cal, err := scanner.LoadCycleCalibration(ctx, c.deps.Store, c.deps.Config.Calibration)
	if err != nil {
		c.log.Warn().Err(err).Msg("calibration load failed for price trigger")
		cal = &scanner.CycleCalibration{}
	}
	if exits, err := c.deps.Monitor.Cycle(ctx, cal); err != nil {
		c.log.Warn().Err(err).Msg("triggered monitor pass failed")
	} else if exits > 0 {
		c.log.Info().Int("exits", exits).Msg("price-triggered exits")
	}
}

// Enqueue adds externally sourced boundary events, used by the websocket
// price trigger to force an early fast scan.
func (c *Coordinator) Enqueue(events ...observation.PendingEvent) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, events...)
	c.mu.Unlock()
}

// cronLogger adapts zerolog to the cron logger interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(kv).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error().Err(err).Fields(kv).Msg(msg)
}
