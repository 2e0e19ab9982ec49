package memory

import (
	"context"

	"retailops/internal/core/apperror"
	"retailops/internal/core/numerator"
)

var (
	_ numerator.Counter       = (*Store)(nil)
	_ numerator.RangeReserver = (*Store)(nil)
)

// Next implements numerator.Counter. Values taken inside a transaction are
// returned to the counter when it rolls back.
func (s *Store) Next(ctx context.Context, tenantID, key string) (int64, error) {
	return s.Reserve(ctx, tenantID, key, 1)
}

// Reserve implements numerator.RangeReserver.
func (s *Store) Reserve(ctx context.Context, tenantID, key string, n int64) (int64, error) {
	if n <= 0 {
		return 0, apperror.NewInvalidArgument("reserve size must be positive")
	}
	var v int64
	err := s.do(ctx, func(st *state) error {
		k := counterKey{tenantID: tenantID, key: key}
		st.counters[k] += n
		v = st.counters[k]
		return nil
	})
	return v, err
}
