package memory

import (
	"context"
	"slices"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/domain/sales"
)

var _ sales.Repository = (*SaleRepo)(nil)

// SaleRepo implements sales.Repository.
type SaleRepo struct {
	store *Store
}

func copySale(s sales.Sale) sales.Sale {
	s.Lines = slices.Clone(s.Lines)
	return s
}

func (r *SaleRepo) Create(ctx context.Context, sale *sales.Sale) error {
	return r.store.do(ctx, func(st *state) error {
		if _, ok := st.sales[sale.ID]; ok {
			return apperror.NewDuplicate("sale", "id", sale.ID.String())
		}
		st.sales[sale.ID] = copySale(*sale)
		return nil
	})
}

func (r *SaleRepo) GetByID(ctx context.Context, tenantID string, saleID id.ID) (*sales.Sale, error) {
	var out sales.Sale
	err := r.store.do(ctx, func(st *state) error {
		s, ok := st.sales[saleID]
		if !ok || s.TenantID != tenantID {
			return apperror.NewNotFound("sale", saleID)
		}
		out = copySale(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, tenantID string, saleID id.ID) (*sales.Sale, error) {
	return r.GetByID(ctx, tenantID, saleID)
}

func (r *SaleRepo) UpdateStatus(ctx context.Context, sale *sales.Sale) error {
	return r.store.do(ctx, func(st *state) error {
		cur, ok := st.sales[sale.ID]
		if !ok || cur.TenantID != sale.TenantID {
			return apperror.NewNotFound("sale", sale.ID)
		}
		cur.Status = sale.Status
		cur.UpdatedAt = sale.UpdatedAt
		st.sales[sale.ID] = cur
		return nil
	})
}
