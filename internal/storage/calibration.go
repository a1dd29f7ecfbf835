package storage

import (
	"context"
	"fmt"

	"weatheredge/pkg/types"
)

// ModelCalibration loads the full model-calibration table keyed by
// (range_type, prob_bucket).
func (s *Store) ModelCalibration(ctx context.Context) (map[string]ModelCalibrationBucket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []ModelCalibrationBucket
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM model_calibration`); err != nil {
		return nil, fmt.Errorf("load model calibration: %w", err)
	}
	out := make(map[string]ModelCalibrationBucket, len(rows))
	for _, r := range rows {
		out[r.RangeType+"|"+r.ProbBucket] = r
	}
	return out, nil
}

// MarketCalibration loads the market-calibration table keyed by
// (platform, range_type, lead_time_bucket, price_bucket).
func (s *Store) MarketCalibration(ctx context.Context) (map[string]MarketCalibrationBucket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []MarketCalibrationBucket
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM market_calibration`); err != nil {
		return nil, fmt.Errorf("load market calibration: %w", err)
	}
	out := make(map[string]MarketCalibrationBucket, len(rows))
	for _, r := range rows {
		out[MarketCalKey(r.Platform, r.RangeType, r.LeadTimeBucket, r.PriceBucket)] = r
	}
	return out, nil
}

// MarketCalKey builds the composite lookup key for market calibration.
func MarketCalKey(platform types.Platform, rangeType, leadBucket, priceBucket string) string {
	return string(platform) + "|" + rangeType + "|" + leadBucket + "|" + priceBucket
}

// RebuildModelCalibration recomputes model calibration from settled YES-side
// evaluations inside the rolling window. TRUNCATE + INSERT inside one
// transaction; the correction ratio is capped in SQL so thin buckets cannot
// explode probabilities. The ratio divides win rate by the raw model
// probability, the same value Correct buckets and multiplies; averaging the
// corrected one would fold each rebuild's output into the next.
func (s *Store) RebuildModelCalibration(ctx context.Context, windowDays int, maxRatio float64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild model calibration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE model_calibration`); err != nil {
		return fmt.Errorf("truncate model calibration: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO model_calibration
			(range_type, prob_bucket, n, avg_model_prob, actual_win_rate, correction_ratio)
		SELECT
			range_type,
			prob_bucket,
			COUNT(*) AS n,
			AVG(raw_probability) AS avg_model_prob,
			AVG(CASE WHEN would_win THEN 1.0 ELSE 0.0 END) AS actual_win_rate,
			LEAST($2::numeric, GREATEST(1.0 / $2::numeric,
				AVG(CASE WHEN would_win THEN 1.0 ELSE 0.0 END)
					/ NULLIF(AVG(raw_probability), 0)
			)) AS correction_ratio
		FROM opportunities
		WHERE side = 'YES'
		  AND would_win IS NOT NULL
		  AND (model_valid IS NULL OR model_valid = TRUE)
		  AND created_at >= now() - ($1 || ' days')::interval
		GROUP BY range_type, prob_bucket`,
		fmt.Sprint(windowDays), maxRatio)
	if err != nil {
		return fmt.Errorf("rebuild model calibration: %w", err)
	}
	return tx.Commit()
}

// RebuildMarketCalibration recomputes the empirical-edge table from settled
// evaluations inside the rolling window.
func (s *Store) RebuildMarketCalibration(ctx context.Context, windowDays int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild market calibration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE market_calibration`); err != nil {
		return fmt.Errorf("truncate market calibration: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO market_calibration
			(platform, range_type, lead_time_bucket, price_bucket,
			 n, empirical_win_rate, market_avg_ask, true_edge)
		SELECT
			platform,
			range_type,
			lead_time_bucket,
			price_bucket,
			COUNT(*) AS n,
			AVG(CASE WHEN would_win THEN 1.0 ELSE 0.0 END) AS empirical_win_rate,
			AVG(best_ask) AS market_avg_ask,
			AVG(CASE WHEN would_win THEN 1.0 ELSE 0.0 END) - AVG(best_ask) AS true_edge
		FROM opportunities
		WHERE side = 'YES'
		  AND would_win IS NOT NULL
		  AND (model_valid IS NULL OR model_valid = TRUE)
		  AND best_ask > 0
		  AND created_at >= now() - ($1 || ' days')::interval
		GROUP BY platform, range_type, lead_time_bucket, price_bucket`,
		fmt.Sprint(windowDays))
	if err != nil {
		return fmt.Errorf("rebuild market calibration: %w", err)
	}
	return tx.Commit()
}

// UpsertCityErrorDistribution replaces one city's corrected-ensemble error
// percentile summary.
func (s *Store) UpsertCityErrorDistribution(ctx context.Context, d *CityErrorDistribution) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO city_error_distribution
			(city, n, mean_error, std_dev, p5, p25, p50, p75, p95)
		VALUES
			(:city, :n, :mean_error, :std_dev, :p5, :p25, :p50, :p75, :p95)
		ON CONFLICT (city) DO UPDATE SET
			n = EXCLUDED.n,
			mean_error = EXCLUDED.mean_error,
			std_dev = EXCLUDED.std_dev,
			p5 = EXCLUDED.p5,
			p25 = EXCLUDED.p25,
			p50 = EXCLUDED.p50,
			p75 = EXCLUDED.p75,
			p95 = EXCLUDED.p95`, d)
	if err != nil {
		return fmt.Errorf("upsert city error distribution: %w", err)
	}
	return nil
}

// CityErrorDistributions loads per-city error summaries keyed by city code.
func (s *Store) CityErrorDistributions(ctx context.Context) (map[string]CityErrorDistribution, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []CityErrorDistribution
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM city_error_distribution`); err != nil {
		return nil, fmt.Errorf("load city error distributions: %w", err)
	}
	out := make(map[string]CityErrorDistribution, len(rows))
	for _, r := range rows {
		out[r.City] = r
	}
	return out, nil
}
