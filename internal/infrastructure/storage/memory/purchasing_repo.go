package memory

import (
	"context"
	"slices"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/domain/purchasing"
)

var _ purchasing.Repository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo implements purchasing.Repository.
type PurchaseOrderRepo struct {
	store *Store
}

func copyOrder(po purchasing.PurchaseOrder) purchasing.PurchaseOrder {
	po.Lines = slices.Clone(po.Lines)
	return po
}

func (r *PurchaseOrderRepo) Create(ctx context.Context, po *purchasing.PurchaseOrder) error {
	return r.store.do(ctx, func(st *state) error {
		if _, ok := st.orders[po.ID]; ok {
			return apperror.NewDuplicate("purchase order", "id", po.ID.String())
		}
		for _, o := range st.orders {
			if o.TenantID == po.TenantID && po.Reference != "" && o.Reference == po.Reference {
				return apperror.NewDuplicate("purchase order", "reference", po.Reference)
			}
		}
		st.orders[po.ID] = copyOrder(*po)
		return nil
	})
}

func (r *PurchaseOrderRepo) GetByID(ctx context.Context, tenantID string, poID id.ID) (*purchasing.PurchaseOrder, error) {
	var out purchasing.PurchaseOrder
	err := r.store.do(ctx, func(st *state) error {
		po, ok := st.orders[poID]
		if !ok || po.TenantID != tenantID {
			return apperror.NewNotFound("purchase order", poID)
		}
		out = copyOrder(po)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, tenantID string, poID id.ID) (*purchasing.PurchaseOrder, error) {
	return r.GetByID(ctx, tenantID, poID)
}

func (r *PurchaseOrderRepo) Update(ctx context.Context, po *purchasing.PurchaseOrder) error {
	return r.store.do(ctx, func(st *state) error {
		cur, ok := st.orders[po.ID]
		if !ok || cur.TenantID != po.TenantID {
			return apperror.NewNotFound("purchase order", po.ID)
		}
		st.orders[po.ID] = copyOrder(*po)
		return nil
	})
}

func (r *PurchaseOrderRepo) CreateReceipt(ctx context.Context, gr *purchasing.GoodsReceipt) error {
	return r.store.do(ctx, func(st *state) error {
		c := *gr
		c.Lines = slices.Clone(gr.Lines)
		st.receipts = append(st.receipts, c)
		return nil
	})
}

func (r *PurchaseOrderRepo) ListReceipts(ctx context.Context, tenantID string, poID id.ID) ([]purchasing.GoodsReceipt, error) {
	var out []purchasing.GoodsReceipt
	err := r.store.do(ctx, func(st *state) error {
		for _, gr := range st.receipts {
			if gr.TenantID == tenantID && gr.PurchaseOrderID == poID {
				gr.Lines = slices.Clone(gr.Lines)
				out = append(out, gr)
			}
		}
		return nil
	})
	return out, err
}
