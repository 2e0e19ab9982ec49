package numerator

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"retailops/internal/core/apperror"
	corenumerator "retailops/internal/core/numerator"
	"retailops/pkg/logger"
)

// BreakerConfig configures the counter circuit breaker.
type BreakerConfig struct {
	Name string

	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32

	// OpenFor is how long the breaker stays open before a trial request
	OpenFor time.Duration
}

// DefaultBreakerConfig returns defaults for a counter breaker.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenFor:             10 * time.Second,
	}
}

// Breaker guards a counter backend. While open it fails fast with
// CounterUnavailable instead of waiting on the backend.
type Breaker struct {
	next corenumerator.Counter
	cb   *gobreaker.CircuitBreaker
}

var _ corenumerator.Counter = (*Breaker)(nil)

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next corenumerator.Counter, cfg BreakerConfig) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "counter breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Next implements corenumerator.Counter.
func (b *Breaker) Next(ctx context.Context, tenantID, key string) (int64, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Next(ctx, tenantID, key)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, apperror.NewCounterUnavailable(key, err)
	}
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Reserve forwards to the wrapped counter when it reserves ranges.
func (b *Breaker) Reserve(ctx context.Context, tenantID, key string, n int64) (int64, error) {
	reserver, ok := b.next.(corenumerator.RangeReserver)
	if !ok {
		return 0, apperror.NewInternal(errors.New("counter backend does not reserve ranges"))
	}
	v, err := b.cb.Execute(func() (any, error) {
		return reserver.Reserve(ctx, tenantID, key, n)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, apperror.NewCounterUnavailable(key, err)
	}
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
