// Package numerator provides sequence counter backends: PostgreSQL, Redis,
// a range-caching decorator and a circuit breaker decorator.
package numerator

import (
	"context"

	"retailops/internal/core/apperror"
	corenumerator "retailops/internal/core/numerator"
	"retailops/internal/infrastructure/storage/postgres"
)

// QuerierSource yields the querier bound to ctx. *postgres.TxManager
// returns the ambient transaction when there is one, so values drawn inside
// a business transaction roll back with it.
type QuerierSource interface {
	GetQuerier(ctx context.Context) postgres.Querier
}

const reserveSQL = `
INSERT INTO sequence_counters (tenant_id, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (tenant_id, key) DO UPDATE
    SET value = sequence_counters.value + EXCLUDED.value, updated_at = now()
RETURNING value`

// Postgres is a counter stored in the sequence_counters table.
// The upsert takes a row lock, so concurrent callers serialize on the row.
type Postgres struct {
	db QuerierSource
}

var (
	_ corenumerator.Counter       = (*Postgres)(nil)
	_ corenumerator.RangeReserver = (*Postgres)(nil)
)

// NewPostgres creates a PostgreSQL counter.
func NewPostgres(db QuerierSource) *Postgres {
	return &Postgres{db: db}
}

// Next implements corenumerator.Counter.
func (p *Postgres) Next(ctx context.Context, tenantID, key string) (int64, error) {
	return p.Reserve(ctx, tenantID, key, 1)
}

// Reserve implements corenumerator.RangeReserver.
func (p *Postgres) Reserve(ctx context.Context, tenantID, key string, n int64) (int64, error) {
	if n <= 0 {
		return 0, apperror.NewInvalidArgument("reserve size must be positive")
	}
	var value int64
	if err := p.db.GetQuerier(ctx).QueryRow(ctx, reserveSQL, tenantID, key, n).Scan(&value); err != nil {
		return 0, apperror.NewCounterUnavailable(key, err)
	}
	return value, nil
}
