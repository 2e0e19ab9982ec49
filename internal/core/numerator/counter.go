package numerator

import (
	"context"
)

// Counter hands out strictly increasing integers per (tenant, key).
//
// Next atomically increments the counter, creating it at zero when absent,
// and returns the post-increment value. Concurrent callers never observe the
// same value. Failures are reported as apperror CounterUnavailable; callers
// must not fabricate a number.
type Counter interface {
	Next(ctx context.Context, tenantID, key string) (int64, error)
}

// RangeReserver reserves a block of n consecutive values in one round trip.
// The returned value is the last value of the block.
type RangeReserver interface {
	Reserve(ctx context.Context, tenantID, key string, n int64) (int64, error)
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context, tenantID, key string) (int64, error)

// Next implements Counter.
func (f CounterFunc) Next(ctx context.Context, tenantID, key string) (int64, error) {
	return f(ctx, tenantID, key)
}
