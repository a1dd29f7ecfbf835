package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weatheredge/pkg/types"
)

// InsertTrade writes a new open trade. The id is assigned here.
func (s *Store) InsertTrade(ctx context.Context, t *Trade) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = StatusOpen
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO trades (
			id, city, target_date, platform, market_id, range_name, range_min, range_max,
			range_type, unit, side,
			entry_ask, entry_bid, entry_spread, entry_volume,
			forecast_temp, forecast_confidence, std_dev, ensemble, edge, kelly, reason,
			cal_confirmed, lead_time_bucket, price_bucket,
			shares, cost, fees, status,
			observation_high, wu_high, evaluations, created_at, updated_at
		) VALUES (
			:id, :city, :target_date, :platform, :market_id, :range_name, :range_min, :range_max,
			:range_type, :unit, :side,
			:entry_ask, :entry_bid, :entry_spread, :entry_volume,
			:forecast_temp, :forecast_confidence, :std_dev, :ensemble, :edge, :kelly, :reason,
			:cal_confirmed, :lead_time_bucket, :price_bucket,
			:shares, :cost, :fees, :status,
			:observation_high, :wu_high, :evaluations, :created_at, :updated_at
		)`, t)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// OpenTrades returns every trade with status=open.
func (s *Store) OpenTrades(ctx context.Context) ([]Trade, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var trades []Trade
	err := s.db.SelectContext(ctx, &trades,
		`SELECT * FROM trades WHERE status = $1 ORDER BY created_at`, StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("select open trades: %w", err)
	}
	return trades, nil
}

// HasActiveTrade reports whether an open OR resolved trade already occupies
// the (city, date, platform, range, side) slot. Resolved counts too: a
// cross-midnight enter/resolve/re-enter loop otherwise appears when
// components disagree on the date boundary.
func (s *Store) HasActiveTrade(ctx context.Context, city, date string, platform types.Platform, rangeName string, side types.Side) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM trades
		WHERE city = $1 AND target_date = $2 AND platform = $3
		  AND range_name = $4 AND side = $5
		  AND status IN ($6, $7)`,
		city, date, platform, rangeName, side, StatusOpen, StatusResolved)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// OpenCostBySide sums cost of open trades per side, for bankroll refresh.
func (s *Store) OpenCostBySide(ctx context.Context) (yes, no float64, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var row struct {
		Yes Numeric `db:"yes_cost"`
		No  Numeric `db:"no_cost"`
	}
	err = s.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(cost) FILTER (WHERE side = 'YES'), 0) AS yes_cost,
			COALESCE(SUM(cost) FILTER (WHERE side = 'NO'), 0) AS no_cost
		FROM trades WHERE status = $1`, StatusOpen)
	if err != nil {
		return 0, 0, fmt.Errorf("open cost by side: %w", err)
	}
	return row.Yes.Float64(), row.No.Float64(), nil
}

// OpenNoCostForDate sums open NO cost on one target date (per-date cap).
func (s *Store) OpenNoCostForDate(ctx context.Context, date string) (float64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var cost Numeric
	err := s.db.GetContext(ctx, &cost, `
		SELECT COALESCE(SUM(cost), 0) FROM trades
		WHERE status = $1 AND side = 'NO' AND target_date = $2`,
		StatusOpen, date)
	if err != nil {
		return 0, fmt.Errorf("open NO cost for date: %w", err)
	}
	return cost.Float64(), nil
}

// OpenCostByReason sums open cost for one entry reason (isolated bankrolls
// for the observation paths).
func (s *Store) OpenCostByReason(ctx context.Context, reason types.EntryReason) (float64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var cost Numeric
	err := s.db.GetContext(ctx, &cost, `
		SELECT COALESCE(SUM(cost), 0) FROM trades
		WHERE status = $1 AND reason = $2`, StatusOpen, string(reason))
	if err != nil {
		return 0, fmt.Errorf("open cost by reason: %w", err)
	}
	return cost.Float64(), nil
}

// ExitTrade marks a trade exited with the full exit field set. The
// observation audit columns are only filled when currently NULL.
func (s *Store) ExitTrade(ctx context.Context, id, reason string, exitPrice, pnl float64, won sql.NullBool, actualTemp, obsHigh, wuHigh NullNumeric) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET
			status = $2,
			exit_reason = $3,
			exit_time = now(),
			exit_price = $4,
			pnl = $5,
			won = $6,
			actual_temp = COALESCE(actual_temp, $7),
			observation_high = COALESCE(observation_high, $8),
			wu_high = COALESCE(wu_high, $9),
			updated_at = now()
		WHERE id = $1 AND status = $10`,
		id, StatusExited, reason, exitPrice, pnl, won,
		actualTemp, obsHigh, wuHigh, StatusOpen)
	if err != nil {
		return fmt.Errorf("exit trade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("exit trade %s: not open", id)
	}
	return nil
}

// ResolveTrade finalizes a trade against the authoritative outcome.
// observation_high/wu_high keep their entry-time values when present;
// resolution never rewrites the audit trail.
func (s *Store) ResolveTrade(ctx context.Context, id string, won bool, actualTemp, pnl, fees float64, station string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET
			status = $2,
			won = $3,
			actual_temp = $4,
			pnl = $5,
			fees = $6,
			resolved_at = now(),
			resolution_station = $7,
			updated_at = now()
		WHERE id = $1 AND status = $8`,
		id, StatusResolved, won, actualTemp, pnl, fees, station, StatusOpen)
	if err != nil {
		return fmt.Errorf("resolve trade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("resolve trade %s: not open", id)
	}
	return nil
}

// UpdateMonitorState persists the running extremes and the trimmed
// evaluator log after a monitor pass.
func (s *Store) UpdateMonitorState(ctx context.Context, id string, maxPrice, minProb NullNumeric, log EvaluatorLog) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE trades SET
			max_price_seen = GREATEST(COALESCE(max_price_seen, 0), COALESCE($2, 0)),
			min_probability_seen = LEAST(COALESCE(min_probability_seen, 1), COALESCE($3, 1)),
			evaluations = $4,
			updated_at = now()
		WHERE id = $1`,
		id, maxPrice, minProb, log)
	if err != nil {
		return fmt.Errorf("update monitor state: %w", err)
	}
	return nil
}

// PerformanceSummary aggregates settled trades for the status command.
type PerformanceSummary struct {
	TotalTrades  int     `db:"total_trades"`
	OpenTrades   int     `db:"open_trades"`
	Wins         int     `db:"wins"`
	Losses       int     `db:"losses"`
	DeployedCost Numeric `db:"deployed_cost"`
	TotalPnL     Numeric `db:"total_pnl"`
	TotalFees    Numeric `db:"total_fees"`
}

// Summary returns the aggregate P&L picture.
func (s *Store) Summary(ctx context.Context) (*PerformanceSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out PerformanceSummary
	err := s.db.GetContext(ctx, &out, `
		SELECT
			COUNT(*) AS total_trades,
			COUNT(*) FILTER (WHERE status = 'open') AS open_trades,
			COUNT(*) FILTER (WHERE won IS TRUE) AS wins,
			COUNT(*) FILTER (WHERE won IS FALSE) AS losses,
			COALESCE(SUM(cost) FILTER (WHERE status = 'open'), 0) AS deployed_cost,
			COALESCE(SUM(pnl), 0) AS total_pnl,
			COALESCE(SUM(fees), 0) AS total_fees
		FROM trades`)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return &out, nil
}
