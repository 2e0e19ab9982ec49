package numerator

import (
	"context"

	"github.com/redis/go-redis/v9"

	"retailops/internal/core/apperror"
	corenumerator "retailops/internal/core/numerator"
)

// IncrByClient is the part of redis.Cmdable the counter needs.
type IncrByClient interface {
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
}

// Redis keeps counters in Redis under seq:<tenant>:<key>. Values are not
// transactional: a rolled back business transaction leaves a gap.
type Redis struct {
	client IncrByClient
	prefix string
}

var (
	_ corenumerator.Counter       = (*Redis)(nil)
	_ corenumerator.RangeReserver = (*Redis)(nil)
)

// NewRedis creates a Redis counter.
func NewRedis(client IncrByClient) *Redis {
	return &Redis{client: client, prefix: "seq"}
}

func (r *Redis) redisKey(tenantID, key string) string {
	return r.prefix + ":" + tenantID + ":" + key
}

// Next implements corenumerator.Counter.
func (r *Redis) Next(ctx context.Context, tenantID, key string) (int64, error) {
	return r.Reserve(ctx, tenantID, key, 1)
}

// Reserve implements corenumerator.RangeReserver.
func (r *Redis) Reserve(ctx context.Context, tenantID, key string, n int64) (int64, error) {
	if n <= 0 {
		return 0, apperror.NewInvalidArgument("reserve size must be positive")
	}
	v, err := r.client.IncrBy(ctx, r.redisKey(tenantID, key), n).Result()
	if err != nil {
		return 0, apperror.NewCounterUnavailable(key, err)
	}
	return v, nil
}
