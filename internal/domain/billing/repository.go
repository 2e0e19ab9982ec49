package billing

import (
	"context"

	"retailops/internal/core/id"
)

// Repository persists invoices and payments.
type Repository interface {
	// CreateInvoice inserts an invoice. A second invoice for the same sale
	// yields apperror Duplicate.
	CreateInvoice(ctx context.Context, inv *Invoice) error

	// GetInvoice returns the invoice or apperror NotFound.
	GetInvoice(ctx context.Context, tenantID string, invoiceID id.ID) (*Invoice, error)

	// GetInvoiceForUpdate is GetInvoice with the row locked until the
	// surrounding transaction ends.
	GetInvoiceForUpdate(ctx context.Context, tenantID string, invoiceID id.ID) (*Invoice, error)

	// ListInvoices returns a page of invoices matching filter, newest issue
	// first, and the number of all matching invoices.
	ListInvoices(ctx context.Context, tenantID string, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindInvoiceBySale returns the sale's invoice or nil when none exists.
	FindInvoiceBySale(ctx context.Context, tenantID string, saleID id.ID) (*Invoice, error)

	// UpdateAmountPaid writes amount_paid and updated_at.
	UpdateAmountPaid(ctx context.Context, inv *Invoice) error

	// CreatePayment inserts a payment.
	CreatePayment(ctx context.Context, p *Payment) error

	// ListPayments returns an invoice's payments, oldest first.
	ListPayments(ctx context.Context, tenantID string, invoiceID id.ID) ([]Payment, error)
}
