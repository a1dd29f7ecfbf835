package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertOpportunity appends one scanner evaluation.
func (s *Store) InsertOpportunity(ctx context.Context, o *Opportunity) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now().UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO opportunities (
			id, city, target_date, platform, market_id, range_name, range_min, range_max,
			range_type, side,
			best_bid, best_ask, spread, bid_depth, ask_depth, volume,
			forecast_temp, ensemble_std_dev, source_spread, market_implied_temp,
			market_divergence, near_edge_dist, far_edge_dist,
			raw_probability, corrected_probability, edge, kelly_fraction,
			prob_bucket, lead_time_bucket, price_bucket, hours_to_resolution,
			action, filter_reason, model_valid, created_at
		) VALUES (
			:id, :city, :target_date, :platform, :market_id, :range_name, :range_min, :range_max,
			:range_type, :side,
			:best_bid, :best_ask, :spread, :bid_depth, :ask_depth, :volume,
			:forecast_temp, :ensemble_std_dev, :source_spread, :market_implied_temp,
			:market_divergence, :near_edge_dist, :far_edge_dist,
			:raw_probability, :corrected_probability, :edge, :kelly_fraction,
			:prob_bucket, :lead_time_bucket, :price_bucket, :hours_to_resolution,
			:action, :filter_reason, :model_valid, :created_at
		)`, o)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// MarkExecutorBlocked retags the newest matching entered opportunity after
// the executor vetoes it, recording the block reason.
func (s *Store) MarkExecutorBlocked(ctx context.Context, marketID string, side string, reason string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE opportunities SET action = $3, filter_reason = $4
		WHERE id = (
			SELECT id FROM opportunities
			WHERE market_id = $1 AND side = $2 AND action = $5
			ORDER BY created_at DESC LIMIT 1
		)`, marketID, side, ActionExecutorBlocked, reason, ActionEntered)
	if err != nil {
		return fmt.Errorf("mark executor blocked: %w", err)
	}
	return nil
}

// BackfillOutcomes fills actual_temp/would_win on every evaluation of a
// resolved market. would_win is computed in SQL against the range bounds so
// all historical rows settle in one statement.
func (s *Store) BackfillOutcomes(ctx context.Context, marketID string, actualTemp float64) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE opportunities SET
			actual_temp = $2,
			would_win = CASE
				WHEN side = 'YES' THEN
					(range_min IS NULL OR $2 >= range_min) AND
					(range_max IS NULL OR $2 <= range_max)
				ELSE NOT (
					(range_min IS NULL OR $2 >= range_min) AND
					(range_max IS NULL OR $2 <= range_max)
				)
			END
		WHERE market_id = $1 AND would_win IS NULL`,
		marketID, actualTemp)
	if err != nil {
		return 0, fmt.Errorf("backfill outcomes: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertDailySummary writes one summary-action row per settled (city, date):
// a queryable day marker carrying the settled high next to the day's
// evaluations. Calibration rebuilds never see it since would_win stays NULL.
func (s *Store) InsertDailySummary(ctx context.Context, city, date string, actual float64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (
			id, city, target_date, platform, market_id, range_name,
			range_type, side, action, actual_temp
		) VALUES ($1, $2, $3, 'all', 'daily_summary', 'daily', 'summary', 'YES', $4, $5)`,
		uuid.NewString(), city, date, ActionSummary, actual)
	if err != nil {
		return fmt.Errorf("insert daily summary: %w", err)
	}
	return nil
}

// DeleteGhostEvaluations removes prior same-day unsettled evaluations of a
// market the platform has withdrawn. The caller records the ghost_deleted
// tombstone row; only filtered rows with no outcome are purged, settled
// history stays.
func (s *Store) DeleteGhostEvaluations(ctx context.Context, marketID string, date string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM opportunities
		WHERE market_id = $1 AND target_date = $2
		  AND action = $3 AND would_win IS NULL`,
		marketID, date, ActionFiltered)
	if err != nil {
		return 0, fmt.Errorf("delete ghost evaluations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
