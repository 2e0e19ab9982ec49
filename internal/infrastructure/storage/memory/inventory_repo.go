package memory

import (
	"context"
	"sort"

	"retailops/internal/core/id"
	"retailops/internal/domain/inventory"
)

var _ inventory.Repository = (*InventoryRepo)(nil)

// InventoryRepo implements inventory.Repository.
// Row locks are implied by the store's writer lock.
type InventoryRepo struct {
	store *Store
}

func (r *InventoryRepo) LockOrCreate(ctx context.Context, key inventory.Key) (*inventory.Snapshot, error) {
	var out inventory.Snapshot
	err := r.store.do(ctx, func(st *state) error {
		snap, ok := st.snapshots[key]
		if !ok {
			snap = *inventory.EmptySnapshot(key)
			st.snapshots[key] = snap
		}
		out = snap
		return nil
	})
	return &out, err
}

func (r *InventoryRepo) Lock(ctx context.Context, key inventory.Key) (*inventory.Snapshot, error) {
	return r.GetSnapshot(ctx, key)
}

func (r *InventoryRepo) SaveSnapshot(ctx context.Context, s *inventory.Snapshot) error {
	return r.store.do(ctx, func(st *state) error {
		st.snapshots[s.Key()] = *s
		return nil
	})
}

func (r *InventoryRepo) AppendLedger(ctx context.Context, e *inventory.LedgerEntry) error {
	return r.store.do(ctx, func(st *state) error {
		st.ledger = append(st.ledger, *e)
		return nil
	})
}

func (r *InventoryRepo) GetSnapshot(ctx context.Context, key inventory.Key) (*inventory.Snapshot, error) {
	var out *inventory.Snapshot
	err := r.store.do(ctx, func(st *state) error {
		if snap, ok := st.snapshots[key]; ok {
			out = &snap
		}
		return nil
	})
	return out, err
}

func (r *InventoryRepo) ListLedger(ctx context.Context, key inventory.Key, filter inventory.LedgerFilter) ([]inventory.LedgerEntry, error) {
	var out []inventory.LedgerEntry
	err := r.store.do(ctx, func(st *state) error {
		for i := len(st.ledger) - 1; i >= 0; i-- {
			e := st.ledger[i]
			if e.TenantID != key.TenantID || e.ProductID != key.ProductID || e.VariantSKU != key.VariantSKU {
				continue
			}
			if filter.SourceType != "" && e.SourceType != filter.SourceType {
				continue
			}
			if !id.IsNil(filter.SourceID) && e.SourceID != filter.SourceID {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, err
}

func (r *InventoryRepo) SumDeltas(ctx context.Context, key inventory.Key) (int64, error) {
	var sum int64
	err := r.store.do(ctx, func(st *state) error {
		for _, e := range st.ledger {
			if e.TenantID == key.TenantID && e.ProductID == key.ProductID && e.VariantSKU == key.VariantSKU {
				sum += e.Delta
			}
		}
		return nil
	})
	return sum, err
}

func (r *InventoryRepo) Keys(ctx context.Context, after *inventory.Key, limit int) ([]inventory.Key, error) {
	var out []inventory.Key
	err := r.store.do(ctx, func(st *state) error {
		for k := range st.snapshots {
			if after == nil || after.Less(k) {
				out = append(out, k)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
