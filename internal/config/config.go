// Package config defines all engine configuration. Config is loaded from a
// YAML file (default: configs/config.yaml) with WEDGE_* environment variable
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file.
type Config struct {
	DryRun bool `mapstructure:"dry_run"`

	Scheduling  SchedulingConfig  `mapstructure:"scheduling"`
	Filters     FilterConfig      `mapstructure:"filters"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Sizing      SizingConfig      `mapstructure:"sizing"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	ObsPath     ObsPathConfig     `mapstructure:"observation_path"`
	Forecast    ForecastConfig    `mapstructure:"forecast"`
	Platforms   PlatformsConfig   `mapstructure:"platforms"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Alerts      AlertConfig       `mapstructure:"alerts"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	HTTPPort    int               `mapstructure:"http_port"`

	// Cities overrides the built-in registry when non-empty.
	Cities []CityConfig `mapstructure:"cities"`
}

// SchedulingConfig controls cycle cadence and the two fast loops.
type SchedulingConfig struct {
	ScanIntervalMinutes        int `mapstructure:"scan_interval_minutes"`
	ObservationPollSeconds     int `mapstructure:"observation_poll_interval_seconds"`
	ObservationPollPeakSeconds int `mapstructure:"observation_poll_interval_peak_seconds"`
	GuaranteedWinScanSeconds   int `mapstructure:"guaranteed_win_scan_interval_seconds"`
}

// FilterConfig holds scanner filter thresholds. Prices are in dollars (0..1).
type FilterConfig struct {
	MinEdgePct           float64 `mapstructure:"min_edge_pct"`
	MaxSpread            float64 `mapstructure:"max_spread"`
	MaxSpreadPct         float64 `mapstructure:"max_spread_pct"`
	MinAskYes            float64 `mapstructure:"min_ask_yes"`
	MinAskNo             float64 `mapstructure:"min_ask_no"`
	MaxAskNo             float64 `mapstructure:"max_ask_no"`
	MinHoursToResolution float64 `mapstructure:"min_hours_to_resolution"`
	MaxModelMarketRatio  float64 `mapstructure:"max_model_market_ratio"`
	MaxMarketDivergence  float64 `mapstructure:"max_market_divergence"`
	MaxStdRangeRatio     float64 `mapstructure:"max_std_range_ratio"`
	ObsBoundaryBufferF   float64 `mapstructure:"obs_boundary_buffer_f"`
}

// CalibrationConfig tunes the empirical correction layer.
type CalibrationConfig struct {
	CalBlocksMinN      int     `mapstructure:"cal_blocks_min_n"`
	CalConfirmsMinN    int     `mapstructure:"cal_confirms_min_n"`
	CalMinTradeEdge    float64 `mapstructure:"cal_min_trade_edge"`
	MaxCorrectionRatio float64 `mapstructure:"max_correction_ratio"`
	ModelProbMinN      int     `mapstructure:"model_prob_min_n"`
	WindowDays         int     `mapstructure:"window_days"`
}

// SizingConfig controls bankrolls and Kelly sizing for edge entries.
type SizingConfig struct {
	KellyFraction       float64 `mapstructure:"kelly_fraction"`
	YesBankroll         float64 `mapstructure:"yes_bankroll"`
	NoBankroll          float64 `mapstructure:"no_bankroll"`
	NoMaxPerDate        float64 `mapstructure:"no_max_per_date"`
	MaxBankrollPct      float64 `mapstructure:"max_bankroll_pct"`
	MinBet              float64 `mapstructure:"min_bet"`
	MaxVolumePct        float64 `mapstructure:"max_volume_pct"`
	HardRejectVolumePct float64 `mapstructure:"hard_reject_volume_pct"`
}

// Monitor signal names, shared between the signal evaluators and the
// active-signals configuration.
var MonitorSignals = []string{
	"guaranteed_win", "guaranteed_loss", "take_profit", "edge_gone",
}

// MonitorConfig controls the open-trade exit evaluators. Each signal runs
// every cycle regardless; only the ones listed in ActiveSignals may act on
// a trade, the rest are log-only.
type MonitorConfig struct {
	ActiveSignals   []string         `mapstructure:"active_signals"`
	EdgeGoneBuffer  float64          `mapstructure:"edge_gone_buffer"`
	TakeProfitTiers []TakeProfitTier `mapstructure:"take_profit_tiers"`
	MaxEvaluations  int              `mapstructure:"max_evaluations"`
}

// SignalActive reports whether a signal may act rather than just log.
func (m MonitorConfig) SignalActive(signal string) bool {
	for _, s := range m.ActiveSignals {
		if s == signal {
			return true
		}
	}
	return false
}

// TakeProfitTier exits when the bid reaches MinBid and the position has
// gained at least MinGainPct over the entry ask.
type TakeProfitTier struct {
	MinBid     float64 `mapstructure:"min_bid"`
	MinGainPct float64 `mapstructure:"min_gain_pct"`
}

// ObsPathConfig controls the guaranteed-win observation fast path.
type ObsPathConfig struct {
	MinMarginCents    float64 `mapstructure:"min_margin_cents"`
	MaxAsk            float64 `mapstructure:"max_ask"`
	MinAsk            float64 `mapstructure:"min_ask"`
	MinAskDualConfirm float64 `mapstructure:"min_ask_dual_confirmed"`
	MaxBankrollPctGW  float64 `mapstructure:"max_bankroll_pct_gw"`
	MetarOnlyMinGapF  float64 `mapstructure:"metar_only_min_gap_f"`
	MetarOnlyMinGapC  float64 `mapstructure:"metar_only_min_gap_c"`
	GWBankroll        float64 `mapstructure:"gw_bankroll"`
	GWFlatPct         float64 `mapstructure:"gw_flat_pct"`

	PWS PWSGWConfig `mapstructure:"pws_gw"`
}

// PWSGWConfig tunes personal-weather-station guaranteed-win entries.
type PWSGWConfig struct {
	Bankroll             float64 `mapstructure:"bankroll"`
	BasePct              float64 `mapstructure:"base_pct"`
	MaxAvgCorrectedError float64 `mapstructure:"max_avg_corrected_error"`
	MinConfidenceFactor  float64 `mapstructure:"min_confidence_factor"`
	TimeFullHours        float64 `mapstructure:"time_full_hours"`
	TimeReducedHours     float64 `mapstructure:"time_reduced_hours"`
	ConfirmPolls         int     `mapstructure:"confirm_polls"`
	SizingMode           string  `mapstructure:"sizing_mode"` // time_factor | ask_factor
}

// ForecastConfig governs source weighting and city eligibility.
type ForecastConfig struct {
	MinActiveSources   int     `mapstructure:"min_active_sources"`
	MinSourceSamples   int     `mapstructure:"min_source_samples"`
	DemotionMAEF       float64 `mapstructure:"demotion_mae_f"`
	DemotionMAEC       float64 `mapstructure:"demotion_mae_c"`
	RelativeDemotion   float64 `mapstructure:"relative_demotion_factor"`
	SoftDemotionWeight float64 `mapstructure:"soft_demotion_weight_cap"`
	KalshiSourceBoost  float64 `mapstructure:"kalshi_source_boost"`
	CacheTTLSeconds    int     `mapstructure:"cache_ttl_seconds"`
	CityMAEBoundedF    float64 `mapstructure:"city_mae_bounded_f"`
	CityMAEUnboundedF  float64 `mapstructure:"city_mae_unbounded_f"`
	CityMAEBoundedC    float64 `mapstructure:"city_mae_bounded_c"`
	CityMAEUnboundedC  float64 `mapstructure:"city_mae_unbounded_c"`
	AccuracyWindowDays int     `mapstructure:"accuracy_window_days"`
	MinStdDevSamples   int     `mapstructure:"min_stddev_samples"`
}

// PlatformsConfig enables/points the two market platforms.
type PlatformsConfig struct {
	Kalshi     PlatformConfig `mapstructure:"kalshi"`
	Polymarket PlatformConfig `mapstructure:"polymarket"`
}

// PlatformConfig is per-platform wiring.
type PlatformConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	TradingEnabled bool   `mapstructure:"trading_enabled"`
	BaseURL        string `mapstructure:"base_url"`
	WSURL          string `mapstructure:"ws_url"`
	CacheTTLMin    int    `mapstructure:"cache_ttl_minutes"`
}

// SourcesConfig holds weather source endpoints and keys.
type SourcesConfig struct {
	OpenMeteoURL   string        `mapstructure:"open_meteo_url"`
	NWSURL         string        `mapstructure:"nws_url"`
	TomorrowURL    string        `mapstructure:"tomorrow_url"`
	TomorrowAPIKey string        `mapstructure:"tomorrow_api_key"`
	WUURL          string        `mapstructure:"wu_url"`
	WUAPIKey       string        `mapstructure:"wu_api_key"`
	MetarURL       string        `mapstructure:"metar_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// AlertConfig configures the Telegram sink.
type AlertConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BotToken      string        `mapstructure:"bot_token"`
	ChatID        string        `mapstructure:"chat_id"`
	QueueInterval time.Duration `mapstructure:"queue_interval"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

// Default returns the engine defaults. Values mirror the production tuning.
func Default() *Config {
	return &Config{
		Scheduling: SchedulingConfig{
			ScanIntervalMinutes:        5,
			ObservationPollSeconds:     30,
			ObservationPollPeakSeconds: 10,
			GuaranteedWinScanSeconds:   15,
		},
		Filters: FilterConfig{
			MinEdgePct:           0.05,
			MaxSpread:            0.15,
			MaxSpreadPct:         0.60,
			MinAskYes:            0.05,
			MinAskNo:             0.20,
			MaxAskNo:             0.30,
			MinHoursToResolution: 2,
			MaxModelMarketRatio:  3.0,
			MaxMarketDivergence:  3.0,
			MaxStdRangeRatio:     2.5,
			ObsBoundaryBufferF:   1.0,
		},
		Calibration: CalibrationConfig{
			CalBlocksMinN:      20,
			CalConfirmsMinN:    30,
			CalMinTradeEdge:    0.03,
			MaxCorrectionRatio: 2.0,
			ModelProbMinN:      15,
			WindowDays:         60,
		},
		Sizing: SizingConfig{
			KellyFraction:       0.5,
			YesBankroll:         1000,
			NoBankroll:          1000,
			NoMaxPerDate:        300,
			MaxBankrollPct:      0.10,
			MinBet:              5,
			MaxVolumePct:        0.10,
			HardRejectVolumePct: 0.25,
		},
		Monitor: MonitorConfig{
			ActiveSignals:  append([]string(nil), MonitorSignals...),
			EdgeGoneBuffer: 0.05,
			TakeProfitTiers: []TakeProfitTier{
				{MinBid: 0.97, MinGainPct: 0},
				{MinBid: 0.90, MinGainPct: 0.50},
				{MinBid: 0.80, MinGainPct: 1.00},
			},
			MaxEvaluations: 24,
		},
		ObsPath: ObsPathConfig{
			MinMarginCents:    5,
			MaxAsk:            0.95,
			MinAsk:            0.30,
			MinAskDualConfirm: 0.20,
			MaxBankrollPctGW:  0.15,
			MetarOnlyMinGapF:  0.5,
			MetarOnlyMinGapC:  1.5,
			GWBankroll:        300,
			GWFlatPct:         0.10,
			PWS: PWSGWConfig{
				Bankroll:             500,
				BasePct:              0.12,
				MaxAvgCorrectedError: 2.0,
				MinConfidenceFactor:  0.25,
				TimeFullHours:        12,
				TimeReducedHours:     15.5,
				ConfirmPolls:         2,
				SizingMode:           "time_factor",
			},
		},
		Forecast: ForecastConfig{
			MinActiveSources:   2,
			MinSourceSamples:   5,
			DemotionMAEF:       5.0,
			DemotionMAEC:       2.8,
			RelativeDemotion:   2.0,
			SoftDemotionWeight: 0.10,
			KalshiSourceBoost:  1.5,
			CacheTTLSeconds:    120,
			CityMAEBoundedF:    2.5,
			CityMAEUnboundedF:  3.5,
			CityMAEBoundedC:    1.4,
			CityMAEUnboundedC:  2.0,
			AccuracyWindowDays: 30,
			MinStdDevSamples:   10,
		},
		Platforms: PlatformsConfig{
			Kalshi: PlatformConfig{
				Enabled:        true,
				TradingEnabled: true,
				BaseURL:        "https://api.elections.kalshi.com/trade-api/v2",
				WSURL:          "wss://api.elections.kalshi.com/trade-api/ws/v2",
				CacheTTLMin:    5,
			},
			Polymarket: PlatformConfig{
				Enabled:        true,
				TradingEnabled: true,
				BaseURL:        "https://gamma-api.polymarket.com",
				CacheTTLMin:    5,
			},
		},
		Sources: SourcesConfig{
			OpenMeteoURL:   "https://api.open-meteo.com/v1",
			NWSURL:         "https://api.weather.gov",
			TomorrowURL:    "https://api.tomorrow.io/v4",
			WUURL:          "https://api.weather.com",
			MetarURL:       "https://aviationweather.gov/api/data",
			RequestTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    20 * time.Second,
		},
		Alerts: AlertConfig{
			QueueInterval: 10 * time.Second,
			SendTimeout:   5 * time.Second,
		},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		HTTPPort: 8080,
	}
}

// Load reads config from a YAML file with env var overrides. Secrets use
// env vars: WEDGE_DATABASE_DSN, WEDGE_TOMORROW_API_KEY, WEDGE_WU_API_KEY,
// WEDGE_TELEGRAM_BOT_TOKEN, WEDGE_TELEGRAM_CHAT_ID. Kalshi credentials
// (WEDGE_KALSHI_API_KEY, WEDGE_KALSHI_PRIVATE_KEY_PATH) are read by the
// command layer; market data works without them.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WEDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; defaults + env apply.
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dsn := os.Getenv("WEDGE_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if key := os.Getenv("WEDGE_TOMORROW_API_KEY"); key != "" {
		cfg.Sources.TomorrowAPIKey = key
	}
	if key := os.Getenv("WEDGE_WU_API_KEY"); key != "" {
		cfg.Sources.WUAPIKey = key
	}
	if tok := os.Getenv("WEDGE_TELEGRAM_BOT_TOKEN"); tok != "" {
		cfg.Alerts.BotToken = tok
		cfg.Alerts.Enabled = true
	}
	if id := os.Getenv("WEDGE_TELEGRAM_CHAT_ID"); id != "" {
		cfg.Alerts.ChatID = id
	}
	if os.Getenv("WEDGE_DRY_RUN") == "true" || os.Getenv("WEDGE_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	if len(cfg.Cities) == 0 {
		cfg.Cities = DefaultCities()
	}

	return cfg, nil
}

// Validate checks required fields and value ranges. Failures here are
// configuration errors: the process exits with code 2.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (set WEDGE_DATABASE_DSN)")
	}
	if c.Scheduling.ScanIntervalMinutes <= 0 {
		return fmt.Errorf("scheduling.scan_interval_minutes must be > 0")
	}
	if c.Sizing.KellyFraction <= 0 || c.Sizing.KellyFraction > 1 {
		return fmt.Errorf("sizing.kelly_fraction must be in (0, 1]")
	}
	if c.Sizing.YesBankroll <= 0 || c.Sizing.NoBankroll <= 0 {
		return fmt.Errorf("sizing bankrolls must be > 0")
	}
	if c.Calibration.MaxCorrectionRatio < 1 {
		return fmt.Errorf("calibration.max_correction_ratio must be >= 1")
	}
	if c.Filters.MinAskNo >= c.Filters.MaxAskNo {
		return fmt.Errorf("filters.min_ask_no must be below filters.max_ask_no")
	}
	for _, sig := range c.Monitor.ActiveSignals {
		known := false
		for _, s := range MonitorSignals {
			if s == sig {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("monitor.active_signals: unknown signal %q", sig)
		}
	}
	switch c.ObsPath.PWS.SizingMode {
	case "time_factor", "ask_factor":
	default:
		return fmt.Errorf("observation_path.pws_gw.sizing_mode must be time_factor or ask_factor")
	}
	if c.Alerts.Enabled && (c.Alerts.BotToken == "" || c.Alerts.ChatID == "") {
		return fmt.Errorf("alerts enabled but bot_token/chat_id missing")
	}
	if len(c.Cities) == 0 {
		return fmt.Errorf("no cities configured")
	}
	seen := make(map[string]bool)
	for _, city := range c.Cities {
		if err := city.Validate(); err != nil {
			return fmt.Errorf("city %s: %w", city.Code, err)
		}
		if seen[city.Code] {
			return fmt.Errorf("duplicate city code %s", city.Code)
		}
		seen[city.Code] = true
	}
	return nil
}

// CycleInterval returns the main cycle period.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Scheduling.ScanIntervalMinutes) * time.Minute
}

// String returns a safe one-line summary (no secrets).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{cities:%d, cycle:%dm, edge>=%.0f%%, kelly:%.2f, yes:$%.0f, no:$%.0f, dryRun:%v}",
		len(c.Cities), c.Scheduling.ScanIntervalMinutes, c.Filters.MinEdgePct*100,
		c.Sizing.KellyFraction, c.Sizing.YesBankroll, c.Sizing.NoBankroll, c.DryRun,
	)
}
