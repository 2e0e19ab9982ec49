// Package document_repo provides PostgreSQL repositories for purchase
// orders, sales, invoices and payments. Every query is scoped by tenant_id.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/infrastructure/storage/postgres"
)

type base struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func newBase(txm *postgres.TxManager) base {
	return base{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (b base) exec(ctx context.Context, q squirrel.Sqlizer, entity string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s statement: %w", entity, err)
	}
	if _, err := b.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("write %s: %w", entity, err), entity)
	}
	return nil
}

// execOne is exec that fails with NotFound when no row matched.
func (b base) execOne(ctx context.Context, q squirrel.Sqlizer, entity string, entityID id.ID) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s statement: %w", entity, err)
	}
	tag, err := b.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("write %s: %w", entity, err), entity)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(entity, entityID)
	}
	return nil
}

// get scans one row into dst; a missing row yields NotFound.
func (b base) get(ctx context.Context, dst any, q squirrel.Sqlizer, entity string, entityID id.ID) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s select: %w", entity, err)
	}
	if err := pgxscan.Get(ctx, b.txm.GetQuerier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, entityID)
		}
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}

func (b base) selectAll(ctx context.Context, dst any, q squirrel.Sqlizer, entity string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s select: %w", entity, err)
	}
	if err := pgxscan.Select(ctx, b.txm.GetQuerier(ctx), dst, sql, args...); err != nil {
		return fmt.Errorf("list %s: %w", entity, err)
	}
	return nil
}
