// Package lock provides a Redis-backed document lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"retailops/internal/core/apperror"
	corelock "retailops/internal/core/lock"
	"retailops/pkg/logger"
)

// Obtainer is satisfied by *redislock.Client.
type Obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// Redis serializes lifecycle transitions of one document across replicas.
type Redis struct {
	client  Obtainer
	ttl     time.Duration
	retries int
	backoff time.Duration
}

var _ corelock.Locker = (*Redis)(nil)

// NewRedis creates a Redis locker. Locks expire after ttl if never released.
func NewRedis(client Obtainer, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, ttl: ttl, retries: 3, backoff: 50 * time.Millisecond}
}

// Acquire implements corelock.Locker. A lock held elsewhere after the
// retries yields TransactionConflict.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
	}
	l, err := r.client.Obtain(ctx, "lock:"+key, r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperror.NewTransactionConflict(err).WithDetail("lock", key)
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("obtain lock %s: %w", key, err))
	}

	return func() {
		// the caller's ctx may already be canceled
		if err := l.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "failed to release lock", "key", key, "error", err)
		}
	}, nil
}
