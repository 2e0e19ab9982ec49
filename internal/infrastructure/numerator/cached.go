package numerator

import (
	"context"
	"sync"

	corenumerator "retailops/internal/core/numerator"
)

type cachedRange struct {
	current int64
	max     int64
}

// Cached hands out values from blocks reserved in advance, one round trip
// per span values. Values are strictly increasing per (tenant, key) within
// one process, but unused values of a block are lost on restart.
// Cached must not be used inside a business transaction.
type Cached struct {
	backend corenumerator.RangeReserver
	span    int64

	mu     sync.Mutex
	ranges map[string]*cachedRange
}

var _ corenumerator.Counter = (*Cached)(nil)

// NewCached creates a caching counter. A non-positive span defaults to 50.
func NewCached(backend corenumerator.RangeReserver, span int64) *Cached {
	if span <= 0 {
		span = 50
	}
	return &Cached{
		backend: backend,
		span:    span,
		ranges:  make(map[string]*cachedRange),
	}
}

// Next implements corenumerator.Counter.
func (c *Cached) Next(ctx context.Context, tenantID, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cacheKey := tenantID + ":" + key
	rng, ok := c.ranges[cacheKey]
	if !ok {
		rng = &cachedRange{}
		c.ranges[cacheKey] = rng
	}

	if rng.current >= rng.max {
		last, err := c.backend.Reserve(ctx, tenantID, key, c.span)
		if err != nil {
			return 0, err
		}
		// block is (last-span, last]
		rng.current = last - c.span
		rng.max = last
	}

	rng.current++
	return rng.current, nil
}
