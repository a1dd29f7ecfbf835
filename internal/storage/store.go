// Package storage is the typed Postgres gateway. Every numeric column is
// coerced to a machine float at the scan boundary and every structured
// column is serialized explicitly; see coerce.go.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog"

	"weatheredge/internal/config"
)

// Store wraps the connection pool and query timeout policy.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
	log     zerolog.Logger
}

// Open connects, configures the pool and runs migrations.
func Open(cfg config.DatabaseConfig, log zerolog.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:      db,
		timeout: cfg.QueryTimeout,
		log:     log.With().Str("component", "storage").Logger(),
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("database ready")
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTimeout applies the gateway-level query timeout.
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range []string{schemaDDL, viewDDL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
