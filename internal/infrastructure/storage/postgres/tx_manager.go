package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"retailops/internal/core/apperror"
	"retailops/internal/core/tx"
	"retailops/pkg/logger"
)

var tracer = otel.Tracer("retailops/tx")

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout protects against long-running queries
	StatementTimeout time.Duration

	// MaxRetries is how many times a transaction aborted by a serialization
	// failure or deadlock is re-run with fresh reads
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles per attempt
	RetryBackoff time.Duration
}

// DefaultTxOptions returns production-safe defaults.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
		MaxRetries:       3,
		RetryBackoff:     10 * time.Millisecond,
	}
}

// TxManager runs functions inside database transactions. The transaction is
// carried in the context so repositories and nested calls share it.
type TxManager struct {
	pool    *pgxpool.Pool
	opts    TxOptions
	onRetry func()
}

// TxManagerOption configures a TxManager.
type TxManagerOption func(*TxManager)

// WithTxOptions replaces the default transaction options.
func WithTxOptions(opts TxOptions) TxManagerOption {
	return func(m *TxManager) { m.opts = opts }
}

// WithRetryHook is called before every retry.
func WithRetryHook(fn func()) TxManagerOption {
	return func(m *TxManager) { m.onRetry = fn }
}

// NewTxManager creates a new transaction manager.
func NewTxManager(pool *Pool, opts ...TxManagerOption) *TxManager {
	m := &TxManager{pool: pool.Pool, opts: DefaultTxOptions(), onRetry: func() {}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type txKey struct{}

// RunInTransaction executes fn within a transaction.
// If a transaction already exists in ctx, it is reused.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, m.opts, fn)
}

// ReadOnly executes fn in a read-only repeatable read transaction, so every
// statement in fn sees the same snapshot.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, readOnlyOptions(m.opts), fn)
}

func readOnlyOptions(opts TxOptions) TxOptions {
	opts.AccessMode = pgx.ReadOnly
	if opts.IsolationLevel != pgx.Serializable {
		opts.IsolationLevel = pgx.RepeatableRead
	}
	return opts
}

// RunInTransactionWithOptions executes fn with custom transaction options.
// Serialization failures and deadlocks re-run fn from scratch up to
// MaxRetries times; after that the error surfaces as TransactionConflict.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(opts.IsolationLevel)),
			attribute.String("tx.access_mode", string(opts.AccessMode)),
		))
	defer span.End()

	backoff := opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := m.runOnce(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transaction failed")
			return err
		}
		if attempt >= opts.MaxRetries {
			span.RecordError(err)
			span.SetStatus(codes.Error, "retries exhausted")
			return apperror.NewTransactionConflict(err)
		}

		m.onRetry()
		logger.Debug(ctx, "retrying transaction", "attempt", attempt+1, "error", err)
		span.AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt+1)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (m *TxManager) runOnce(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if opts.StatementTimeout > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = tx.Rollback(context.Background())
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		// Rollback must complete even if ctx was cancelled.
		if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTx returns the current transaction from context, or nil if none.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// Querier is satisfied by both pgx.Tx and pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the transaction in ctx, or the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if tx := m.GetTx(ctx); tx != nil {
		return tx
	}
	return m.pool
}
