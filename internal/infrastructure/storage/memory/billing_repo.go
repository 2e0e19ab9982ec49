package memory

import (
	"cmp"
	"context"
	"slices"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/domain/billing"
)

var _ billing.Repository = (*BillingRepo)(nil)

// BillingRepo implements billing.Repository.
type BillingRepo struct {
	store *Store
}

func (r *BillingRepo) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	return r.store.do(ctx, func(st *state) error {
		for _, cur := range st.invoices {
			if cur.TenantID != inv.TenantID {
				continue
			}
			if cur.SaleID == inv.SaleID {
				return apperror.NewDuplicate("invoice", "sale_id", inv.SaleID.String())
			}
			if cur.InvoiceNumber == inv.InvoiceNumber {
				return apperror.NewDuplicate("invoice", "invoice_number", inv.InvoiceNumber)
			}
		}
		st.invoices[inv.ID] = *inv
		return nil
	})
}

func (r *BillingRepo) GetInvoice(ctx context.Context, tenantID string, invoiceID id.ID) (*billing.Invoice, error) {
	var out billing.Invoice
	err := r.store.do(ctx, func(st *state) error {
		inv, ok := st.invoices[invoiceID]
		if !ok || inv.TenantID != tenantID {
			return apperror.NewNotFound("invoice", invoiceID)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BillingRepo) GetInvoiceForUpdate(ctx context.Context, tenantID string, invoiceID id.ID) (*billing.Invoice, error) {
	return r.GetInvoice(ctx, tenantID, invoiceID)
}

func (r *BillingRepo) ListInvoices(ctx context.Context, tenantID string, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	var matched []billing.Invoice
	err := r.store.do(ctx, func(st *state) error {
		for _, inv := range st.invoices {
			if inv.TenantID != tenantID {
				continue
			}
			if filter.Status != "" && inv.Status() != filter.Status {
				continue
			}
			matched = append(matched, inv)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	slices.SortFunc(matched, func(a, b billing.Invoice) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, end)
	}
	return matched[start:end], total, nil
}

func (r *BillingRepo) FindInvoiceBySale(ctx context.Context, tenantID string, saleID id.ID) (*billing.Invoice, error) {
	var out *billing.Invoice
	err := r.store.do(ctx, func(st *state) error {
		for _, inv := range st.invoices {
			if inv.TenantID == tenantID && inv.SaleID == saleID {
				out = &inv
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *BillingRepo) UpdateAmountPaid(ctx context.Context, inv *billing.Invoice) error {
	return r.store.do(ctx, func(st *state) error {
		cur, ok := st.invoices[inv.ID]
		if !ok || cur.TenantID != inv.TenantID {
			return apperror.NewNotFound("invoice", inv.ID)
		}
		cur.AmountPaid = inv.AmountPaid
		cur.UpdatedAt = inv.UpdatedAt
		st.invoices[inv.ID] = cur
		return nil
	})
}

func (r *BillingRepo) CreatePayment(ctx context.Context, p *billing.Payment) error {
	return r.store.do(ctx, func(st *state) error {
		st.payments = append(st.payments, *p)
		return nil
	})
}

func (r *BillingRepo) ListPayments(ctx context.Context, tenantID string, invoiceID id.ID) ([]billing.Payment, error) {
	var out []billing.Payment
	err := r.store.do(ctx, func(st *state) error {
		for _, p := range st.payments {
			if p.TenantID == tenantID && p.InvoiceID == invoiceID {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}
