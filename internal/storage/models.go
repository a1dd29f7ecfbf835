package storage

import (
	"database/sql"
	"time"

	"weatheredge/pkg/types"
)

// Trade status values.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusExited   = "exited"
)

// Opportunity action values.
const (
	ActionEntered         = "entered"
	ActionFiltered        = "filtered"
	ActionExecutorBlocked = "executor_blocked"
	ActionSummary         = "summary"
	ActionGhostDeleted    = "ghost_deleted"
)

// Trade is one position. cost == shares * entry_ask always holds; fees are
// tracked separately so P&L attribution stays honest.
type Trade struct {
	ID         string         `db:"id"`
	City       string         `db:"city"`
	TargetDate Date           `db:"target_date"`
	Platform   types.Platform `db:"platform"`
	MarketID   string         `db:"market_id"`
	RangeName  string         `db:"range_name"`
	RangeMin   NullNumeric    `db:"range_min"`
	RangeMax   NullNumeric    `db:"range_max"`
	RangeType  string         `db:"range_type"`
	Unit       string         `db:"unit"`
	Side       types.Side     `db:"side"`

	// Entry snapshot.
	EntryAsk           Numeric        `db:"entry_ask"`
	EntryBid           Numeric        `db:"entry_bid"`
	EntrySpread        Numeric        `db:"entry_spread"`
	EntryVolume        Numeric        `db:"entry_volume"`
	ForecastTemp       NullNumeric    `db:"forecast_temp"`
	ForecastConfidence sql.NullString `db:"forecast_confidence"`
	StdDev             NullNumeric    `db:"std_dev"`
	Ensemble           JSONMap        `db:"ensemble"`
	Edge               NullNumeric    `db:"edge"`
	Kelly              NullNumeric    `db:"kelly"`
	Reason             string         `db:"reason"`
	CalConfirmed       bool           `db:"cal_confirmed"`
	LeadTimeBucket     sql.NullString `db:"lead_time_bucket"`
	PriceBucket        sql.NullString `db:"price_bucket"`

	// Position.
	Shares int     `db:"shares"`
	Cost   Numeric `db:"cost"`
	Fees   Numeric `db:"fees"`

	Status string `db:"status"`

	// Resolution.
	Won               sql.NullBool   `db:"won"`
	ActualTemp        NullNumeric    `db:"actual_temp"`
	PnL               NullNumeric    `db:"pnl"`
	ResolvedAt        sql.NullTime   `db:"resolved_at"`
	ResolutionStation sql.NullString `db:"resolution_station"`

	// Exit.
	ExitReason sql.NullString `db:"exit_reason"`
	ExitTime   sql.NullTime   `db:"exit_time"`
	ExitPrice  NullNumeric    `db:"exit_price"`

	// Observation audit. Set at entry or exit and never overwritten.
	ObservationHigh NullNumeric `db:"observation_high"`
	WUHigh          NullNumeric `db:"wu_high"`

	// Running extremes over the trade's life.
	MaxPriceSeen       NullNumeric `db:"max_price_seen"`
	MinProbabilitySeen NullNumeric `db:"min_probability_seen"`

	Evaluations EvaluatorLog `db:"evaluations"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Range rebuilds the typed range from the row.
func (t *Trade) Range() types.TempRange {
	return types.TempRange{
		Min:  t.RangeMin.Ptr(),
		Max:  t.RangeMax.Ptr(),
		Type: types.RangeType(t.RangeType),
		Unit: types.Unit(t.Unit),
		Name: t.RangeName,
	}
}

// Opportunity is one scanner evaluation of (range, side) in a cycle.
// Append-only; the resolver backfills the outcome columns.
type Opportunity struct {
	ID         string         `db:"id"`
	City       string         `db:"city"`
	TargetDate Date           `db:"target_date"`
	Platform   types.Platform `db:"platform"`
	MarketID   string         `db:"market_id"`
	RangeName  string         `db:"range_name"`
	RangeMin   NullNumeric    `db:"range_min"`
	RangeMax   NullNumeric    `db:"range_max"`
	RangeType  string         `db:"range_type"`
	Side       types.Side     `db:"side"`

	BestBid  Numeric `db:"best_bid"`
	BestAsk  Numeric `db:"best_ask"`
	Spread   Numeric `db:"spread"`
	BidDepth Numeric `db:"bid_depth"`
	AskDepth Numeric `db:"ask_depth"`
	Volume   Numeric `db:"volume"`

	ForecastTemp     NullNumeric `db:"forecast_temp"`
	EnsembleStdDev   NullNumeric `db:"ensemble_std_dev"`
	SourceSpread     NullNumeric `db:"source_spread"`
	MarketImpliedT   NullNumeric `db:"market_implied_temp"`
	MarketDivergence NullNumeric `db:"market_divergence"`
	NearEdgeDist     NullNumeric `db:"near_edge_dist"`
	FarEdgeDist      NullNumeric `db:"far_edge_dist"`

	RawProbability       Numeric     `db:"raw_probability"`
	CorrectedProbability Numeric     `db:"corrected_probability"`
	Edge                 Numeric     `db:"edge"`
	KellyFraction        Numeric     `db:"kelly_fraction"`
	ProbBucket           string      `db:"prob_bucket"`
	LeadTimeBucket       string      `db:"lead_time_bucket"`
	PriceBucket          string      `db:"price_bucket"`
	HoursToResolution    NullNumeric `db:"hours_to_resolution"`

	Action       string         `db:"action"`
	FilterReason sql.NullString `db:"filter_reason"`

	// Backfilled after resolution.
	ActualTemp sql.NullFloat64 `db:"actual_temp"`
	WouldWin   sql.NullBool    `db:"would_win"`

	ModelValid sql.NullBool `db:"model_valid"`
	CreatedAt  time.Time    `db:"created_at"`
}

// Observation is the running per-day high for a city. Append-only within a
// day; running_high, station_high and wu_high never decrease. running_high
// folds every source; station_high tracks only the settlement station's
// METAR readings.
type Observation struct {
	ID               string      `db:"id"`
	City             string      `db:"city"`
	TargetDate       Date        `db:"target_date"`
	StationID        string      `db:"station_id"`
	TempF            Numeric     `db:"temp_f"`
	RunningHigh      Numeric     `db:"running_high"`
	StationHigh      NullNumeric `db:"station_high"`
	WUHigh           NullNumeric `db:"wu_high"`
	ObservationCount int         `db:"observation_count"`
	ObservedAt       time.Time   `db:"observed_at"`
}

// PWSSample is one personal-weather-station reading with bias metadata.
type PWSSample struct {
	ID            string    `db:"id"`
	City          string    `db:"city"`
	TargetDate    Date      `db:"target_date"`
	StationID     string    `db:"station_id"`
	TempF         Numeric   `db:"temp_f"`
	CorrectedTemp Numeric   `db:"corrected_temp"`
	StationBias   Numeric   `db:"station_bias"`
	ObservedAt    time.Time `db:"observed_at"`
}

// MarketResolution is the canonical outcome per market id.
type MarketResolution struct {
	MarketID          string         `db:"market_id"`
	City              string         `db:"city"`
	TargetDate        Date           `db:"target_date"`
	Platform          types.Platform `db:"platform"`
	ActualTemp        Numeric        `db:"actual_temp"`
	WinningRange      sql.NullString `db:"winning_range"`
	ResolutionStation string         `db:"resolution_station"`
	ResolvedAt        time.Time      `db:"resolved_at"`
}

// ModelCalibrationBucket corrects raw model probabilities per
// (range_type, prob bucket). Rebuilt wholesale by the resolver.
type ModelCalibrationBucket struct {
	RangeType       string  `db:"range_type"`
	ProbBucket      string  `db:"prob_bucket"`
	N               int     `db:"n"`
	AvgModelProb    Numeric `db:"avg_model_prob"`
	ActualWinRate   Numeric `db:"actual_win_rate"`
	CorrectionRatio Numeric `db:"correction_ratio"`
}

// MarketCalibrationBucket holds empirical win rates per
// (platform, range_type, lead-time bucket, price bucket).
type MarketCalibrationBucket struct {
	Platform         types.Platform `db:"platform"`
	RangeType        string         `db:"range_type"`
	LeadTimeBucket   string         `db:"lead_time_bucket"`
	PriceBucket      string         `db:"price_bucket"`
	N                int            `db:"n"`
	EmpiricalWinRate Numeric        `db:"empirical_win_rate"`
	MarketAvgAsk     Numeric        `db:"market_avg_ask"`
	TrueEdge         Numeric        `db:"true_edge"`
}

// CityErrorDistribution summarizes corrected-ensemble errors per city.
type CityErrorDistribution struct {
	City      string  `db:"city"`
	N         int     `db:"n"`
	MeanError Numeric `db:"mean_error"` // signed bias
	StdDev    Numeric `db:"std_dev"`
	P5        Numeric `db:"p5"`
	P25       Numeric `db:"p25"`
	P50       Numeric `db:"p50"`
	P75       Numeric `db:"p75"`
	P95       Numeric `db:"p95"`
}

// AccuracyRow records one source's forecast against the settled outcome.
type AccuracyRow struct {
	ID          string      `db:"id"`
	City        string      `db:"city"`
	TargetDate  Date        `db:"target_date"`
	Source      string      `db:"source"` // source name or "ensemble_corrected"
	ForecastF   Numeric     `db:"forecast_f"`
	ActualF     Numeric     `db:"actual_f"`
	SignedError Numeric     `db:"signed_error"`
	AbsError    Numeric     `db:"abs_error"`
	ModelValid  sql.NullBool `db:"model_valid"`
	CreatedAt   time.Time   `db:"created_at"`
}

// MVRefreshLog records one materialized-view refresh.
type MVRefreshLog struct {
	ID         string    `db:"id"`
	ViewName   string    `db:"view_name"`
	RowCount   int64     `db:"row_count"`
	DurationMS int64     `db:"duration_ms"`
	RefreshedAt time.Time `db:"refreshed_at"`
}

// ForecastSnapshot persists one raw source fetch for rolling calibration.
type ForecastSnapshot struct {
	ID         string    `db:"id"`
	City       string    `db:"city"`
	TargetDate Date      `db:"target_date"`
	Source     string    `db:"source"`
	HighF      Numeric   `db:"high_f"`
	FetchedAt  time.Time `db:"fetched_at"`
}
