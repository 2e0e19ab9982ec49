package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailops/internal/core/id"
	"retailops/internal/domain/billing"
	"retailops/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable = "invoices"
	paymentsTable = "payments"
)

var invoiceColumns = []string{
	"id", "tenant_id", "sale_id", "invoice_number", "issued_at", "amount", "amount_paid", "created_at", "updated_at",
}

var paymentColumns = []string{
	"id", "tenant_id", "invoice_id", "amount", "method", "paid_at", "notes", "created_at",
}

var _ billing.Repository = (*InvoiceRepo)(nil)

// InvoiceRepo implements billing.Repository.
type InvoiceRepo struct {
	base
}

// NewInvoiceRepo creates the invoice and payment repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{base: newBase(txm)}
}

func (r *InvoiceRepo) insertInvoiceQuery(inv *billing.Invoice) squirrel.InsertBuilder {
	return r.builder.Insert(invoicesTable).
		Columns(invoiceColumns...).
		Values(inv.ID, inv.TenantID, inv.SaleID, inv.InvoiceNumber, inv.IssuedAt,
			inv.Amount, inv.AmountPaid, inv.CreatedAt, inv.UpdatedAt)
}

// CreateInvoice maps a unique violation on (tenant_id, sale_id) or
// (tenant_id, invoice_number) to apperror Duplicate.
func (r *InvoiceRepo) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	return r.exec(ctx, r.insertInvoiceQuery(inv), "invoice")
}

func (r *InvoiceRepo) invoiceQuery(tenantID string, invoiceID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(invoiceColumns...).
		From(invoicesTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": invoiceID})
}

func (r *InvoiceRepo) GetInvoice(ctx context.Context, tenantID string, invoiceID id.ID) (*billing.Invoice, error) {
	var inv billing.Invoice
	if err := r.get(ctx, &inv, r.invoiceQuery(tenantID, invoiceID), "invoice", invoiceID); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepo) GetInvoiceForUpdate(ctx context.Context, tenantID string, invoiceID id.ID) (*billing.Invoice, error) {
	var inv billing.Invoice
	q := r.invoiceQuery(tenantID, invoiceID).Suffix("FOR UPDATE")
	if err := r.get(ctx, &inv, q, "invoice", invoiceID); err != nil {
		return nil, err
	}
	return &inv, nil
}

// paymentStatusPredicate mirrors billing.Invoice.Status in SQL.
func paymentStatusPredicate(status billing.PaymentStatus) squirrel.Sqlizer {
	switch status {
	case billing.PaymentUnpaid:
		return squirrel.LtOrEq{"amount_paid": 0}
	case billing.PaymentPartiallyPaid:
		return squirrel.And{squirrel.Gt{"amount_paid": 0}, squirrel.Expr("amount_paid < amount")}
	case billing.PaymentPaid:
		return squirrel.And{squirrel.Gt{"amount_paid": 0}, squirrel.Expr("amount_paid >= amount")}
	}
	return nil
}

func (r *InvoiceRepo) filterInvoices(q squirrel.SelectBuilder, tenantID string, filter billing.InvoiceFilter) squirrel.SelectBuilder {
	q = q.From(invoicesTable).Where(squirrel.Eq{"tenant_id": tenantID})
	if pred := paymentStatusPredicate(filter.Status); pred != nil {
		q = q.Where(pred)
	}
	return q
}

func (r *InvoiceRepo) listInvoicesQuery(tenantID string, filter billing.InvoiceFilter) squirrel.SelectBuilder {
	q := r.filterInvoices(r.builder.Select(invoiceColumns...), tenantID, filter).
		OrderBy("issued_at DESC", "id DESC").
		Offset(uint64(filter.Offset))
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

func (r *InvoiceRepo) countInvoicesQuery(tenantID string, filter billing.InvoiceFilter) squirrel.SelectBuilder {
	return r.filterInvoices(r.builder.Select("COUNT(*)"), tenantID, filter)
}

func (r *InvoiceRepo) ListInvoices(ctx context.Context, tenantID string, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	var invoices []billing.Invoice
	if err := r.selectAll(ctx, &invoices, r.listInvoicesQuery(tenantID, filter), "invoices"); err != nil {
		return nil, 0, err
	}

	sql, args, err := r.countInvoicesQuery(tenantID, filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build invoice count: %w", err)
	}
	var total int64
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &total, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

func (r *InvoiceRepo) FindInvoiceBySale(ctx context.Context, tenantID string, saleID id.ID) (*billing.Invoice, error) {
	sql, args, err := r.builder.Select(invoiceColumns...).
		From(invoicesTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "sale_id": saleID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var inv billing.Invoice
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepo) updateAmountPaidQuery(inv *billing.Invoice) squirrel.UpdateBuilder {
	return r.builder.Update(invoicesTable).
		Set("amount_paid", inv.AmountPaid).
		Set("updated_at", inv.UpdatedAt).
		Where(squirrel.Eq{"tenant_id": inv.TenantID, "id": inv.ID})
}

func (r *InvoiceRepo) UpdateAmountPaid(ctx context.Context, inv *billing.Invoice) error {
	return r.execOne(ctx, r.updateAmountPaidQuery(inv), "invoice", inv.ID)
}

func (r *InvoiceRepo) CreatePayment(ctx context.Context, p *billing.Payment) error {
	q := r.builder.Insert(paymentsTable).
		Columns(paymentColumns...).
		Values(p.ID, p.TenantID, p.InvoiceID, p.Amount, string(p.Method), p.PaidAt, p.Notes, p.CreatedAt)
	return r.exec(ctx, q, "payment")
}

func (r *InvoiceRepo) ListPayments(ctx context.Context, tenantID string, invoiceID id.ID) ([]billing.Payment, error) {
	var payments []billing.Payment
	q := r.builder.Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "invoice_id": invoiceID}).
		OrderBy("paid_at", "created_at")
	if err := r.selectAll(ctx, &payments, q, "payments"); err != nil {
		return nil, err
	}
	return payments, nil
}
