package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/tx"
	"retailops/pkg/logger"
)

// Observer receives posting outcomes, typically for metrics.
type Observer interface {
	Posted(source SourceType, quantity int64)
	InsufficientStock()
}

type noopObserver struct{}

func (noopObserver) Posted(SourceType, int64) {}
func (noopObserver) InsufficientStock()       {}

// Engine posts stock movements. Every posting reads and locks the snapshot,
// writes the new snapshot and appends the ledger entry in one transaction.
// When the caller already runs a transaction the posting joins it.
type Engine struct {
	repo     Repository
	txm      tx.Manager
	observer Observer
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the posting observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates the ledger and snapshot engine.
func NewEngine(repo Repository, txm tx.Manager, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		txm:      txm,
		observer: noopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PostReceipt adds quantity at unitCost and recomputes the weighted average.
func (e *Engine) PostReceipt(ctx context.Context, p ReceiptPosting) (*Snapshot, error) {
	if err := p.Key.Validate(); err != nil {
		return nil, err
	}
	if p.Quantity <= 0 {
		return nil, apperror.NewInvalidArgument("quantity must be positive").
			WithDetail("quantity", p.Quantity)
	}
	if p.UnitCost.IsNegative() {
		return nil, apperror.NewInvalidArgument("unit cost must not be negative").
			WithDetail("unit_cost", p.UnitCost.String())
	}

	var result *Snapshot
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		snap, err := e.repo.LockOrCreate(ctx, p.Key)
		if err != nil {
			return fmt.Errorf("lock snapshot: %w", err)
		}

		snap.AverageCost = WeightedAverage(snap.OnHand, snap.AverageCost, p.Quantity, p.UnitCost)
		snap.OnHand += p.Quantity
		snap.UpdatedAt = e.now().UTC()
		if err := e.repo.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}

		entry := e.entry(p.Key, p.Quantity, SourceReceipt, p.SourceID)
		entry.UnitCostAtPosting = decimal.NewNullDecimal(p.UnitCost)
		if err := e.repo.AppendLedger(ctx, entry); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}

		result = snap
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.observer.Posted(SourceReceipt, p.Quantity)
	return result, nil
}

// PostSale removes quantity from stock. The average cost is recorded on the
// ledger entry and left unchanged on the snapshot.
func (e *Engine) PostSale(ctx context.Context, p SalePosting) (*Snapshot, error) {
	if err := p.Key.Validate(); err != nil {
		return nil, err
	}
	if p.Quantity <= 0 {
		return nil, apperror.NewInvalidArgument("quantity must be positive").
			WithDetail("quantity", p.Quantity)
	}

	var result *Snapshot
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		snap, err := e.repo.Lock(ctx, p.Key)
		if err != nil {
			return fmt.Errorf("lock snapshot: %w", err)
		}

		var available int64
		if snap != nil {
			available = snap.OnHand
		}
		if snap == nil || available < p.Quantity {
			return apperror.NewInsufficientStock(p.Key.ProductID.String(), p.Key.VariantSKU, p.Quantity, available)
		}

		avg := snap.AverageCost
		snap.OnHand -= p.Quantity
		snap.UpdatedAt = e.now().UTC()
		if err := e.repo.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}

		entry := e.entry(p.Key, -p.Quantity, SourceSale, p.SourceID)
		entry.AverageCostAtPosting = decimal.NewNullDecimal(avg)
		if err := e.repo.AppendLedger(ctx, entry); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}

		result = snap
		return nil
	})
	if err != nil {
		// counted once per call, not per transaction attempt
		if apperror.IsCode(err, apperror.CodeInsufficientStock) {
			e.observer.InsufficientStock()
		}
		return nil, err
	}

	e.observer.Posted(SourceSale, p.Quantity)
	return result, nil
}

// ReverseSale returns the items of a cancelled sale to stock without touching
// the cost basis. All items commit together or not at all.
func (e *Engine) ReverseSale(ctx context.Context, tenantID string, sourceID id.ID, items []Item) error {
	if len(items) == 0 {
		return apperror.NewInvalidArgument("at least one item is required")
	}
	keys := make([]Key, 0, len(items))
	qty := make(map[Key]int64, len(items))
	for i, it := range items {
		key := Key{TenantID: tenantID, ProductID: it.ProductID, VariantSKU: it.VariantSKU}
		if err := key.Validate(); err != nil {
			return err
		}
		if it.Quantity <= 0 {
			return apperror.NewInvalidArgument("quantity must be positive").
				WithDetail("line", i).
				WithDetail("quantity", it.Quantity)
		}
		if _, seen := qty[key]; !seen {
			keys = append(keys, key)
		}
		qty[key] += it.Quantity
	}
	SortKeys(keys)

	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, key := range keys {
			snap, err := e.repo.LockOrCreate(ctx, key)
			if err != nil {
				return fmt.Errorf("lock snapshot: %w", err)
			}

			q := qty[key]
			snap.OnHand += q
			snap.UpdatedAt = e.now().UTC()
			if err := e.repo.SaveSnapshot(ctx, snap); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}

			entry := e.entry(key, q, SourceSaleCancel, sourceID)
			entry.AverageCostAtPosting = decimal.NewNullDecimal(snap.AverageCost)
			if err := e.repo.AppendLedger(ctx, entry); err != nil {
				return fmt.Errorf("append ledger: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		e.observer.Posted(SourceSaleCancel, qty[key])
	}
	return nil
}

// Snapshot returns the current position of key; absent keys read as zero.
func (e *Engine) Snapshot(ctx context.Context, key Key) (*Snapshot, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	snap, err := e.repo.GetSnapshot(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if snap == nil {
		return EmptySnapshot(key), nil
	}
	return snap, nil
}

// Ledger lists the journal of key, newest first.
func (e *Engine) Ledger(ctx context.Context, key Key, filter LedgerFilter) ([]LedgerEntry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	entries, err := e.repo.ListLedger(ctx, key, filter)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}

// Verify reconciles the snapshot of key against its ledger.
func (e *Engine) Verify(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	onHand, sum, err := e.positions(ctx, key)
	if err != nil {
		return err
	}
	if onHand != sum {
		logger.Error(ctx, "inventory snapshot diverged from ledger",
			"product_id", key.ProductID,
			"variant_sku", key.VariantSKU,
			"on_hand", onHand,
			"ledger_sum", sum,
		)
		return apperror.NewInternal(fmt.Errorf("snapshot on_hand %d != ledger sum %d", onHand, sum)).
			WithDetail("product_id", key.ProductID.String()).
			WithDetail("variant_sku", key.VariantSKU)
	}
	return nil
}

// positions reads on_hand and the ledger sum of key in one transaction,
// read-only when the manager supports it.
func (e *Engine) positions(ctx context.Context, key Key) (onHand, sum int64, err error) {
	run := e.txm.RunInTransaction
	if ro, ok := e.txm.(tx.ReadOnlyManager); ok {
		run = ro.ReadOnly
	}
	err = run(ctx, func(ctx context.Context) error {
		snap, err := e.repo.GetSnapshot(ctx, key)
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		onHand = 0
		if snap != nil {
			onHand = snap.OnHand
		}
		sum, err = e.repo.SumDeltas(ctx, key)
		if err != nil {
			return fmt.Errorf("sum deltas: %w", err)
		}
		return nil
	})
	return onHand, sum, err
}

func (e *Engine) entry(key Key, delta int64, source SourceType, sourceID id.ID) *LedgerEntry {
	return &LedgerEntry{
		ID:         id.New(),
		TenantID:   key.TenantID,
		ProductID:  key.ProductID,
		VariantSKU: key.VariantSKU,
		Delta:      delta,
		SourceType: source,
		SourceID:   sourceID,
		CreatedAt:  e.now().UTC(),
	}
}

// SortKeys orders keys in lock order.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
