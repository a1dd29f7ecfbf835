package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordObservation appends a reading and advances the running high. The
// running high is monotonic within a (city, date): a cooler later reading
// never lowers it.
func (s *Store) RecordObservation(ctx context.Context, o *Observation) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	prev, err := s.LatestObservation(ctx, o.City, o.TargetDate.String())
	if err != nil {
		return err
	}

	o.ObservationCount = 1
	if prev != nil {
		o.ObservationCount = prev.ObservationCount + 1
		if prev.RunningHigh > o.RunningHigh {
			o.RunningHigh = prev.RunningHigh
		}
		// station_high and wu_high are also monotonic, but only advance
		// when their feed reports.
		if prev.StationHigh.Valid && (!o.StationHigh.Valid || prev.StationHigh.Numeric > o.StationHigh.Numeric) {
			o.StationHigh = prev.StationHigh
		}
		if prev.WUHigh.Valid && (!o.WUHigh.Valid || prev.WUHigh.Numeric > o.WUHigh.Numeric) {
			o.WUHigh = prev.WUHigh
		}
	}
	if o.TempF > o.RunningHigh {
		o.RunningHigh = o.TempF
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.ObservedAt.IsZero() {
		o.ObservedAt = time.Now().UTC()
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO observations (
			id, city, target_date, station_id, temp_f, running_high,
			station_high, wu_high, observation_count, observed_at
		) VALUES (
			:id, :city, :target_date, :station_id, :temp_f, :running_high,
			:station_high, :wu_high, :observation_count, :observed_at
		)`, o)
	if err != nil {
		return fmt.Errorf("record observation: %w", err)
	}
	return nil
}

// LatestObservation returns the newest reading for (city, date), nil when
// none exists yet.
func (s *Store) LatestObservation(ctx context.Context, city, date string) (*Observation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var o Observation
	err := s.db.GetContext(ctx, &o, `
		SELECT * FROM observations
		WHERE city = $1 AND target_date = $2
		ORDER BY observed_at DESC LIMIT 1`, city, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest observation: %w", err)
	}
	return &o, nil
}

// InsertPWSSample appends one personal-weather-station reading.
func (s *Store) InsertPWSSample(ctx context.Context, p *PWSSample) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ObservedAt.IsZero() {
		p.ObservedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO pws_samples (
			id, city, target_date, station_id, temp_f, corrected_temp,
			station_bias, observed_at
		) VALUES (
			:id, :city, :target_date, :station_id, :temp_f, :corrected_temp,
			:station_bias, :observed_at
		)`, p)
	if err != nil {
		return fmt.Errorf("insert pws sample: %w", err)
	}
	return nil
}

// RecentPWSSamples returns the newest samples for (city, date), newest first.
func (s *Store) RecentPWSSamples(ctx context.Context, city, date string, limit int) ([]PWSSample, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []PWSSample
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM pws_samples
		WHERE city = $1 AND target_date = $2
		ORDER BY observed_at DESC LIMIT $3`, city, date, limit)
	if err != nil {
		return nil, fmt.Errorf("recent pws samples: %w", err)
	}
	return out, nil
}
