// Package inventory_repo provides the PostgreSQL snapshot and ledger store.
package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailops/internal/core/id"
	"retailops/internal/domain/inventory"
	"retailops/internal/infrastructure/storage/postgres"
)

const (
	snapshotsTable = "inventory_snapshots"
	ledgerTable    = "inventory_ledger"
)

var snapshotColumns = []string{
	"tenant_id", "product_id", "variant_sku", "on_hand", "average_cost", "updated_at",
}

var ledgerColumns = []string{
	"id", "tenant_id", "product_id", "variant_sku", "delta",
	"source_type", "source_id", "unit_cost_at_posting", "average_cost_at_posting", "created_at",
}

var _ inventory.Repository = (*Repo)(nil)

// Repo implements inventory.Repository.
type Repo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// New creates the inventory repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func keyEq(key inventory.Key) squirrel.Eq {
	return squirrel.Eq{
		"tenant_id":   key.TenantID,
		"product_id":  key.ProductID,
		"variant_sku": key.VariantSKU,
	}
}

// upsertLockQuery inserts a zero row when absent. The no-op DO UPDATE makes
// the statement return the existing row and take its row lock.
func (r *Repo) upsertLockQuery(key inventory.Key) squirrel.InsertBuilder {
	return r.builder.Insert(snapshotsTable).
		Columns("tenant_id", "product_id", "variant_sku", "on_hand", "average_cost").
		Values(key.TenantID, key.ProductID, key.VariantSKU, 0, 0).
		Suffix("ON CONFLICT (tenant_id, product_id, variant_sku) DO UPDATE SET on_hand = " +
			snapshotsTable + ".on_hand RETURNING tenant_id, product_id, variant_sku, on_hand, average_cost, updated_at")
}

func (r *Repo) selectQuery(key inventory.Key) squirrel.SelectBuilder {
	return r.builder.Select(snapshotColumns...).
		From(snapshotsTable).
		Where(keyEq(key))
}

func (r *Repo) LockOrCreate(ctx context.Context, key inventory.Key) (*inventory.Snapshot, error) {
	sql, args, err := r.upsertLockQuery(key).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert: %w", err)
	}

	var snap inventory.Snapshot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &snap, sql, args...); err != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}
	return &snap, nil
}

func (r *Repo) Lock(ctx context.Context, key inventory.Key) (*inventory.Snapshot, error) {
	return r.get(ctx, r.selectQuery(key).Suffix("FOR UPDATE"))
}

func (r *Repo) GetSnapshot(ctx context.Context, key inventory.Key) (*inventory.Snapshot, error) {
	return r.get(ctx, r.selectQuery(key))
}

func (r *Repo) get(ctx context.Context, q squirrel.SelectBuilder) (*inventory.Snapshot, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var snap inventory.Snapshot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &snap, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &snap, nil
}

func (r *Repo) SaveSnapshot(ctx context.Context, s *inventory.Snapshot) error {
	q := r.builder.Update(snapshotsTable).
		Set("on_hand", s.OnHand).
		Set("average_cost", s.AverageCost).
		Set("updated_at", s.UpdatedAt).
		Where(keyEq(s.Key()))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update snapshot: %w", err), "inventory snapshot")
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update snapshot: %d rows affected", tag.RowsAffected())
	}
	return nil
}

func (r *Repo) insertLedgerQuery(e *inventory.LedgerEntry) squirrel.InsertBuilder {
	return r.builder.Insert(ledgerTable).
		Columns(ledgerColumns...).
		Values(
			e.ID, e.TenantID, e.ProductID, e.VariantSKU, e.Delta,
			string(e.SourceType), e.SourceID, e.UnitCostAtPosting, e.AverageCostAtPosting, e.CreatedAt,
		)
}

func (r *Repo) AppendLedger(ctx context.Context, e *inventory.LedgerEntry) error {
	sql, args, err := r.insertLedgerQuery(e).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert ledger entry: %w", err), "inventory ledger")
	}
	return nil
}

func (r *Repo) listLedgerQuery(key inventory.Key, filter inventory.LedgerFilter) squirrel.SelectBuilder {
	q := r.builder.Select(ledgerColumns...).
		From(ledgerTable).
		Where(keyEq(key)).
		OrderBy("created_at DESC", "id DESC")

	if filter.SourceType != "" {
		q = q.Where(squirrel.Eq{"source_type": string(filter.SourceType)})
	}
	if !id.IsNil(filter.SourceID) {
		q = q.Where(squirrel.Eq{"source_id": filter.SourceID})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

func (r *Repo) ListLedger(ctx context.Context, key inventory.Key, filter inventory.LedgerFilter) ([]inventory.LedgerEntry, error) {
	sql, args, err := r.listLedgerQuery(key, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var entries []inventory.LedgerEntry
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}

func (r *Repo) SumDeltas(ctx context.Context, key inventory.Key) (int64, error) {
	sql, args, err := r.builder.Select("COALESCE(SUM(delta), 0)").
		From(ledgerTable).
		Where(keyEq(key)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select: %w", err)
	}

	var sum int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return sum, nil
}

// keysQuery pages through snapshot keys in byte order, matching Key.Less.
func (r *Repo) keysQuery(after *inventory.Key, limit int) squirrel.SelectBuilder {
	q := r.builder.Select("tenant_id", "product_id", "variant_sku").
		From(snapshotsTable).
		OrderBy(`tenant_id COLLATE "C"`, "product_id", `variant_sku COLLATE "C"`).
		Limit(uint64(limit))
	if after != nil {
		q = q.Where(squirrel.Expr(
			`(tenant_id COLLATE "C", product_id, variant_sku COLLATE "C") > (?, ?, ?)`,
			after.TenantID, after.ProductID, after.VariantSKU,
		))
	}
	return q
}

func (r *Repo) Keys(ctx context.Context, after *inventory.Key, limit int) ([]inventory.Key, error) {
	if limit <= 0 {
		limit = 200
	}
	sql, args, err := r.keysQuery(after, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var keys []inventory.Key
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &keys, sql, args...); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}
