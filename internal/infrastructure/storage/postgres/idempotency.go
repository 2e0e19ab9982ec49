package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailops/internal/core/apperror"
	"retailops/internal/core/idempotency"
)

const idempotencyTable = "idempotency_keys"

var _ idempotency.Store = (*IdempotencyStore)(nil)

type idempotencyRow struct {
	TenantID    string    `db:"tenant_id"`
	Key         string    `db:"idempotency_key"`
	Operation   string    `db:"operation"`
	RequestHash string    `db:"request_hash"`
	Status      string    `db:"status"`
	Response    []byte    `db:"response"`
	StatusCode  int       `db:"response_status"`
	ContentType string    `db:"response_content_type"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

func (r idempotencyRow) record() *idempotency.Record {
	return &idempotency.Record{
		Request: idempotency.Request{
			TenantID:    r.TenantID,
			Key:         r.Key,
			Operation:   r.Operation,
			RequestHash: r.RequestHash,
		},
		Status: idempotency.Status(r.Status),
		Response: idempotency.Response{
			StatusCode:  r.StatusCode,
			ContentType: r.ContentType,
			Body:        r.Response,
		},
		UpdatedAt: r.UpdatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

// IdempotencyStore manages idempotency keys, one row per tenant and key.
// Statements run on the pool, outside any request transaction.
type IdempotencyStore struct {
	txm        *TxManager
	builder    squirrel.StatementBuilderType
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(txm *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txm:        txm,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		ttl:        ttl,
		staleAfter: idempotency.DefaultStaleAfter,
		now:        time.Now,
	}
}

func (s *IdempotencyStore) insertQuery(req idempotency.Request, now time.Time) squirrel.InsertBuilder {
	return s.builder.Insert(idempotencyTable).
		Columns("tenant_id", "idempotency_key", "operation", "request_hash", "status", "created_at", "updated_at", "expires_at").
		Values(req.TenantID, req.Key, req.Operation, req.RequestHash, string(idempotency.StatusPending), now, now, now.Add(s.ttl)).
		Suffix("ON CONFLICT (tenant_id, idempotency_key) DO NOTHING")
}

func (s *IdempotencyStore) selectQuery(req idempotency.Request) squirrel.SelectBuilder {
	return s.builder.Select("tenant_id", "idempotency_key", "operation", "request_hash", "status",
		"response", "response_status", "response_content_type", "updated_at", "expires_at").
		From(idempotencyTable).
		Where(squirrel.Eq{"tenant_id": req.TenantID, "idempotency_key": req.Key})
}

// reclaimQuery takes over a stale or expired row. Matching on the observed
// updated_at lets exactly one contender win.
func (s *IdempotencyStore) reclaimQuery(req idempotency.Request, seen time.Time, now time.Time) squirrel.UpdateBuilder {
	return s.builder.Update(idempotencyTable).
		Set("operation", req.Operation).
		Set("request_hash", req.RequestHash).
		Set("status", string(idempotency.StatusPending)).
		Set("response", nil).
		Set("response_status", 0).
		Set("response_content_type", "").
		Set("updated_at", now).
		Set("expires_at", now.Add(s.ttl)).
		Where(squirrel.Eq{"tenant_id": req.TenantID, "idempotency_key": req.Key, "updated_at": seen})
}

func (s *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Response, error) {
	now := s.now().UTC()

	affected, err := s.exec(ctx, s.insertQuery(req, now))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if affected == 1 {
		return nil, nil
	}

	sql, args, err := s.selectQuery(req).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build idempotency select: %w", err)
	}
	var row idempotencyRow
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			// removed by cleanup between the two statements
			return nil, apperror.NewIdempotencyConflict(req.Key)
		}
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}

	replay, reclaim, err := row.record().Resolve(req, now, s.staleAfter)
	if err != nil || replay != nil {
		return replay, err
	}
	if !reclaim {
		return nil, nil
	}
	affected, err = s.exec(ctx, s.reclaimQuery(req, row.UpdatedAt, now))
	if err != nil {
		return nil, fmt.Errorf("reclaim idempotency key: %w", err)
	}
	if affected == 0 {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	return nil, nil
}

func (s *IdempotencyStore) completeQuery(req idempotency.Request, resp idempotency.Response) squirrel.UpdateBuilder {
	return s.builder.Update(idempotencyTable).
		Set("status", string(idempotency.StatusCompleted)).
		Set("response", resp.Body).
		Set("response_status", resp.StatusCode).
		Set("response_content_type", resp.ContentType).
		Set("updated_at", s.now().UTC()).
		Where(squirrel.Eq{"tenant_id": req.TenantID, "idempotency_key": req.Key, "request_hash": req.RequestHash})
}

func (s *IdempotencyStore) Complete(ctx context.Context, req idempotency.Request, resp idempotency.Response) error {
	if _, err := s.exec(ctx, s.completeQuery(req, resp)); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, req idempotency.Request) error {
	q := s.builder.Delete(idempotencyTable).
		Where(squirrel.Eq{
			"tenant_id":       req.TenantID,
			"idempotency_key": req.Key,
			"status":          string(idempotency.StatusPending),
		})
	if _, err := s.exec(ctx, q); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) cleanupQuery(now time.Time) squirrel.DeleteBuilder {
	return s.builder.Delete(idempotencyTable).Where(squirrel.Lt{"expires_at": now})
}

// CleanupExpired removes expired keys of every tenant.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.exec(ctx, s.cleanupQuery(s.now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return n, nil
}

func (s *IdempotencyStore) exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
