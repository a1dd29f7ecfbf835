package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// materializedViews in refresh order.
var materializedViews = []string{
	"market_outcomes_mv",
	"features_ml_mv",
	"performance_mv",
}

// RefreshViews refreshes every materialized view concurrently and logs
// per-view row counts and timings. A failed view does not stop the rest.
func (s *Store) RefreshViews(ctx context.Context) error {
	var firstErr error
	for _, view := range materializedViews {
		if err := s.refreshView(ctx, view); err != nil {
			s.log.Error().Err(err).Str("view", view).Msg("materialized view refresh failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Store) refreshView(ctx context.Context, view string) error {
	// Refreshes scan whole tables, so they run outside the query timeout.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`REFRESH MATERIALIZED VIEW CONCURRENTLY %s`, view)); err != nil {
		return fmt.Errorf("refresh %s: %w", view, err)
	}
	elapsed := time.Since(start)

	var rows int64
	if err := s.db.GetContext(ctx, &rows,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, view)); err != nil {
		return fmt.Errorf("count %s: %w", view, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mv_refresh_log (id, view_name, row_count, duration_ms)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), view, rows, elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("log refresh %s: %w", view, err)
	}

	s.log.Info().Str("view", view).Int64("rows", rows).
		Dur("elapsed", elapsed).Msg("materialized view refreshed")
	return nil
}
