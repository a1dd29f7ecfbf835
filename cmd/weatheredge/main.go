// Command weatheredge runs the weather market paper-trading engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"weatheredge/internal/config"
	"weatheredge/internal/scanner"
)

const (
	exitRuntime = 1
	exitConfig  = 2
)

var (
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "weatheredge",
		Short: "Automated paper trading on weather prediction markets",
		Long: "weatheredge scans Kalshi and Polymarket daily-high temperature markets,\n" +
			"prices them against a calibrated multi-source forecast ensemble, and\n" +
			"paper-trades the edges it finds.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	root.AddCommand(startCmd(), scanCmd(), statusCmd(), resolveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitRuntime)
	}
}

// setup loads env, config, and the logger. Config failures exit with
// code 2 so supervisors can distinguish them from runtime crashes.
func setup() (*config.Config, zerolog.Logger) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(exitConfig)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(exitConfig)
	}
	return cfg, newLogger(cfg.Logging)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Format == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return log.Level(level).With().Timestamp().Logger()
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the full engine: scan, execute, monitor, resolve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup()
			ctx, cancel := signalContext()
			defer cancel()

			app, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			log.Info().Str("config", cfg.String()).Msg("engine starting")
			return app.Run(ctx)
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one scan cycle and print what it finds, without trading",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup()
			ctx, cancel := signalContext()
			defer cancel()

			app, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			cal, err := scanner.LoadCycleCalibration(ctx, app.store, cfg.Calibration)
			if err != nil {
				log.Warn().Err(err).Msg("calibration unavailable, pricing uncorrected")
				cal = &scanner.CycleCalibration{}
			}
			candidates, err := app.scanner.ScanCycle(ctx, cal)
			if err != nil {
				return err
			}
			for _, c := range candidates {
				fmt.Printf("%-28s %-10s %-4s ask=%.2f edge=%+.3f kelly=%.3f reason=%s\n",
					c.Market.ID, c.Market.City, c.Side, c.Ask, c.Edge, c.Kelly, c.Reason)
			}
			fmt.Printf("%d tradable candidates\n", len(candidates))
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the aggregate paper-trading P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup()
			ctx, cancel := signalContext()
			defer cancel()

			app, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := app.store.Summary(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("trades:    %d (%d open)\n", s.TotalTrades, s.OpenTrades)
			fmt.Printf("record:    %d-%d\n", s.Wins, s.Losses)
			fmt.Printf("deployed:  $%.2f\n", s.DeployedCost.Float64())
			fmt.Printf("pnl:       $%+.2f (fees $%.2f)\n", s.TotalPnL.Float64(), s.TotalFees.Float64())
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Run one settlement pass over finished markets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup()
			ctx, cancel := signalContext()
			defer cancel()

			app, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.resolver.Cycle(ctx)
		},
	}
}
