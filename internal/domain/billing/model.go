// Package billing issues invoices for sales and tracks payments against them.
package billing

import (
	"time"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/types"
)

// PaymentStatus is derived from amount and amount paid.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
)

// Invoice bills a sale. Amount is fixed at issuance; AmountPaid only grows.
type Invoice struct {
	ID            id.ID       `db:"id" json:"id"`
	TenantID      string      `db:"tenant_id" json:"-"`
	SaleID        id.ID       `db:"sale_id" json:"saleId"`
	InvoiceNumber string      `db:"invoice_number" json:"invoiceNumber"`
	IssuedAt      time.Time   `db:"issued_at" json:"issuedAt"`
	Amount        types.Money `db:"amount" json:"amount"`
	AmountPaid    types.Money `db:"amount_paid" json:"amountPaid"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
}

// Status returns the payment status. Overpaid invoices report paid.
func (i *Invoice) Status() PaymentStatus {
	switch {
	case !i.AmountPaid.IsPositive():
		return PaymentUnpaid
	case i.AmountPaid.LessThan(i.Amount):
		return PaymentPartiallyPaid
	default:
		return PaymentPaid
	}
}

// Balance returns the amount still due; negative when overpaid.
func (i *Invoice) Balance() types.Money {
	return i.Amount.Sub(i.AmountPaid)
}

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPartiallyPaid, PaymentPaid:
		return true
	}
	return false
}

// Invoice list paging bounds.
const (
	DefaultInvoiceLimit = 20
	MaxInvoiceLimit     = 100
)

// InvoiceFilter narrows invoice listings. An empty Status matches all.
type InvoiceFilter struct {
	Status PaymentStatus
	Limit  int
	Offset int
}

// Normalize validates f and fills in default paging.
func (f InvoiceFilter) Normalize() (InvoiceFilter, error) {
	if f.Status != "" && !f.Status.Valid() {
		return f, apperror.NewInvalidArgument("unknown payment status").
			WithDetail("status", string(f.Status))
	}
	if f.Limit < 0 || f.Limit > MaxInvoiceLimit {
		return f, apperror.NewInvalidArgument("limit out of range").
			WithDetail("limit", f.Limit).
			WithDetail("max", MaxInvoiceLimit)
	}
	if f.Offset < 0 {
		return f, apperror.NewInvalidArgument("offset must not be negative").
			WithDetail("offset", f.Offset)
	}
	if f.Limit == 0 {
		f.Limit = DefaultInvoiceLimit
	}
	return f, nil
}

// InvoicePage is one page of an invoice listing.
type InvoicePage struct {
	Invoices []Invoice
	Total    int64
	Limit    int
	Offset   int
}

// HasMore reports whether invoices exist past this page.
func (p *InvoicePage) HasMore() bool {
	return int64(p.Offset+p.Limit) < p.Total
}

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodBank  PaymentMethod = "bank"
	MethodOther PaymentMethod = "other"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBank, MethodOther:
		return true
	}
	return false
}

// Payment is an immutable receipt of funds against an invoice.
type Payment struct {
	ID        id.ID         `db:"id" json:"id"`
	TenantID  string        `db:"tenant_id" json:"-"`
	InvoiceID id.ID         `db:"invoice_id" json:"invoiceId"`
	Amount    types.Money   `db:"amount" json:"amount"`
	Method    PaymentMethod `db:"method" json:"method"`
	PaidAt    time.Time     `db:"paid_at" json:"paidAt"`
	Notes     string        `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// PaymentInput is the input of RecordPayment.
type PaymentInput struct {
	InvoiceID id.ID
	Amount    types.Money
	Method    PaymentMethod
	PaidAt    *time.Time
	Notes     string
}

// Validate checks the payment input.
func (in PaymentInput) Validate() error {
	if id.IsNil(in.InvoiceID) {
		return apperror.NewInvalidArgument("invoice_id is required")
	}
	if !in.Amount.IsPositive() {
		return apperror.NewInvalidArgument("amount must be positive").
			WithDetail("amount", in.Amount.String())
	}
	if !in.Method.Valid() {
		return apperror.NewInvalidArgument("unknown payment method").
			WithDetail("method", string(in.Method))
	}
	return nil
}
