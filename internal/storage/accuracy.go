package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertAccuracyRow records one source forecast against the settled actual.
// Duplicate (city, date, source) rows from a resolver re-run are skipped.
func (s *Store) InsertAccuracyRow(ctx context.Context, r *AccuracyRow) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM forecast_accuracy
		WHERE city = $1 AND target_date = $2 AND source = $3`,
		r.City, r.TargetDate, r.Source)
	if err != nil {
		return fmt.Errorf("accuracy dedup check: %w", err)
	}
	if n > 0 {
		return nil
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO forecast_accuracy (
			id, city, target_date, source, forecast_f, actual_f,
			signed_error, abs_error, model_valid, created_at
		) VALUES (
			:id, :city, :target_date, :source, :forecast_f, :actual_f,
			:signed_error, :abs_error, :model_valid, :created_at
		)`, r)
	if err != nil {
		return fmt.Errorf("insert accuracy row: %w", err)
	}
	return nil
}

// SourceMAE returns each source's rolling mean absolute error for one city,
// keyed by source name. Sources with no settled history are absent.
func (s *Store) SourceMAE(ctx context.Context, city string, windowDays int) (map[string]float64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []struct {
		Source string  `db:"source"`
		MAE    Numeric `db:"mae"`
		N      int     `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT source, AVG(abs_error) AS mae, COUNT(*) AS n
		FROM forecast_accuracy
		WHERE city = $1
		  AND (model_valid IS NULL OR model_valid = TRUE)
		  AND target_date >= (CURRENT_DATE - $2::int)
		GROUP BY source`, city, windowDays)
	if err != nil {
		return nil, fmt.Errorf("source mae: %w", err)
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.Source] = r.MAE.Float64()
	}
	return out, nil
}

// CorrectedEnsembleErrors returns the signed errors of the corrected
// ensemble for one city inside the window, for the percentile rebuild.
func (s *Store) CorrectedEnsembleErrors(ctx context.Context, city string, windowDays int) ([]float64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []Numeric
	err := s.db.SelectContext(ctx, &rows, `
		SELECT signed_error FROM forecast_accuracy
		WHERE city = $1 AND source = 'ensemble_corrected'
		  AND (model_valid IS NULL OR model_valid = TRUE)
		  AND target_date >= (CURRENT_DATE - $2::int)
		ORDER BY target_date`, city, windowDays)
	if err != nil {
		return nil, fmt.Errorf("corrected ensemble errors: %w", err)
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Float64()
	}
	return out, nil
}

// InsertForecastSnapshot persists one raw source fetch.
func (s *Store) InsertForecastSnapshot(ctx context.Context, snap *ForecastSnapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	snap.FetchedAt = time.Now().UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO forecast_snapshots (id, city, target_date, source, high_f, fetched_at)
		VALUES (:id, :city, :target_date, :source, :high_f, :fetched_at)`, snap)
	if err != nil {
		return fmt.Errorf("insert forecast snapshot: %w", err)
	}
	return nil
}

// LatestForecastSnapshots returns the newest snapshot per source for
// (city, date). Used by the resolver to grade every source that forecast
// the day, not just the ones active at entry.
func (s *Store) LatestForecastSnapshots(ctx context.Context, city, date string) ([]ForecastSnapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []ForecastSnapshot
	err := s.db.SelectContext(ctx, &out, `
		SELECT DISTINCT ON (source) *
		FROM forecast_snapshots
		WHERE city = $1 AND target_date = $2
		ORDER BY source, fetched_at DESC`, city, date)
	if err != nil {
		return nil, fmt.Errorf("latest forecast snapshots: %w", err)
	}
	return out, nil
}
