// Package forecast builds per-(city, date) temperature distributions from a
// weighted multi-source ensemble, with rolling-accuracy weighting and
// empirical calibration correction.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"weatheredge/internal/config"
)

// Source fetches a forecast daily high for a city-local date, in the
// city's settlement unit.
type Source interface {
	Name() string
	FetchHigh(ctx context.Context, city config.CityConfig, date string) (float64, error)
}

// ErrSourceInapplicable marks a source that cannot serve a city (wrong
// region, missing API key). Not a failure: the source is skipped silently.
var ErrSourceInapplicable = fmt.Errorf("source not applicable")

// breakerSource wraps a Source with a circuit breaker so a flapping
// upstream stops eating its per-call timeout every cycle.
type breakerSource struct {
	inner Source
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps a source in a circuit breaker.
func WithBreaker(s Source) Source {
	return &breakerSource{
		inner: s,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        s.Name(),
			MaxRequests: 1,
			Interval:    5 * time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (b *breakerSource) Name() string { return b.inner.Name() }

func (b *breakerSource) FetchHigh(ctx context.Context, city config.CityConfig, date string) (float64, error) {
	var (
		high         float64
		inapplicable bool
	)
	_, err := b.cb.Execute(func() (interface{}, error) {
		h, err := b.inner.FetchHigh(ctx, city, date)
		if err != nil {
			// Inapplicable sources must not trip the breaker.
			if errors.Is(err, ErrSourceInapplicable) {
				inapplicable = true
				return nil, nil
			}
			return nil, err
		}
		high = h
		return nil, nil
	})
	if err != nil {
		return 0, err
	}
	if inapplicable {
		return 0, ErrSourceInapplicable
	}
	return high, nil
}
