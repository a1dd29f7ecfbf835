package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertResolution records the authoritative outcome for a market. Repeat
// resolver runs land on the same row, so the whole step is idempotent.
func (s *Store) UpsertResolution(ctx context.Context, r *MarketResolution) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO market_resolutions (
			market_id, city, target_date, platform, actual_temp,
			winning_range, resolution_station, resolved_at
		) VALUES (
			:market_id, :city, :target_date, :platform, :actual_temp,
			:winning_range, :resolution_station, now()
		)
		ON CONFLICT (market_id) DO UPDATE SET
			actual_temp = EXCLUDED.actual_temp,
			winning_range = EXCLUDED.winning_range,
			resolution_station = EXCLUDED.resolution_station`, r)
	if err != nil {
		return fmt.Errorf("upsert resolution: %w", err)
	}
	return nil
}

// Resolution returns the recorded outcome for a market, nil when unresolved.
func (s *Store) Resolution(ctx context.Context, marketID string) (*MarketResolution, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var r MarketResolution
	err := s.db.GetContext(ctx, &r,
		`SELECT * FROM market_resolutions WHERE market_id = $1`, marketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resolution: %w", err)
	}
	return &r, nil
}

// UnresolvedMarkets lists distinct evaluated markets on or before a date
// that have no resolution row yet, oldest date first.
func (s *Store) UnresolvedMarkets(ctx context.Context, upToDate string) ([]Opportunity, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []Opportunity
	err := s.db.SelectContext(ctx, &out, `
		SELECT DISTINCT ON (o.market_id) o.*
		FROM opportunities o
		LEFT JOIN market_resolutions r ON r.market_id = o.market_id
		WHERE r.market_id IS NULL AND o.target_date <= $1
		ORDER BY o.market_id, o.created_at DESC`, upToDate)
	if err != nil {
		return nil, fmt.Errorf("unresolved markets: %w", err)
	}
	return out, nil
}
