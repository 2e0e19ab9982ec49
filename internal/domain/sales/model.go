// Package sales implements the sale lifecycle:
// draft -> confirmed -> delivered, and confirmed -> canceled.
package sales

import (
	"fmt"
	"time"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/types"
)

// Status is the lifecycle state of a sale.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCanceled  Status = "canceled"
)

// CanInvoice reports whether an invoice may be issued in this status.
func (s Status) CanInvoice() bool {
	return s == StatusConfirmed || s == StatusDelivered
}

// Sale is a customer order.
type Sale struct {
	ID         id.ID       `db:"id" json:"id"`
	TenantID   string      `db:"tenant_id" json:"-"`
	Number     string      `db:"number" json:"number,omitempty"`
	CustomerID *id.ID      `db:"customer_id" json:"customerId,omitempty"`
	Status     Status      `db:"status" json:"status"`
	SaleDate   time.Time   `db:"sale_date" json:"saleDate"`
	Subtotal   types.Money `db:"subtotal" json:"subtotal"`
	Discount   types.Money `db:"discount" json:"discount"`
	Tax        types.Money `db:"tax" json:"tax"`
	Total      types.Money `db:"total" json:"total"`
	Notes      string      `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updatedAt"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one sold product variant.
type Line struct {
	ID         id.ID       `db:"id" json:"id"`
	SaleID     id.ID       `db:"sale_id" json:"-"`
	LineNo     int         `db:"line_no" json:"lineNo"`
	ProductID  id.ID       `db:"product_id" json:"productId"`
	VariantSKU string      `db:"variant_sku" json:"variantSku"`
	Quantity   int64       `db:"quantity" json:"quantity"`
	UnitPrice  types.Money `db:"unit_price" json:"unitPrice"`
	LineTotal  types.Money `db:"line_total" json:"lineTotal"`
}

// ComputeTotals recalculates line totals and header totals.
// Total never goes below zero.
func (s *Sale) ComputeTotals() {
	subtotal := types.Zero()
	for i := range s.Lines {
		l := &s.Lines[i]
		l.LineTotal = types.LineTotal(l.Quantity, l.UnitPrice)
		subtotal = subtotal.Add(l.LineTotal)
	}
	s.Subtotal = subtotal
	s.Total = types.ClampZero(subtotal.Sub(s.Discount).Add(s.Tax))
}

// Validate checks header and line invariants.
func (s *Sale) Validate() error {
	if len(s.Lines) == 0 {
		return apperror.NewInvalidArgument("at least one line is required")
	}
	if s.Discount.IsNegative() {
		return apperror.NewInvalidArgument("discount must not be negative")
	}
	if s.Tax.IsNegative() {
		return apperror.NewInvalidArgument("tax must not be negative")
	}
	for i := range s.Lines {
		l := &s.Lines[i]
		if id.IsNil(l.ProductID) {
			return apperror.NewInvalidArgument(fmt.Sprintf("line %d: product_id is required", i+1)).
				WithDetail("line", i+1)
		}
		if l.Quantity <= 0 {
			return apperror.NewInvalidArgument(fmt.Sprintf("line %d: quantity must be positive", i+1)).
				WithDetail("line", i+1).
				WithDetail("variant_sku", l.VariantSKU)
		}
		if l.UnitPrice.IsNegative() {
			return apperror.NewInvalidArgument(fmt.Sprintf("line %d: unit price must not be negative", i+1)).
				WithDetail("line", i+1).
				WithDetail("variant_sku", l.VariantSKU)
		}
	}
	return nil
}

// transition validates a lifecycle move.
func (s *Sale) transition(to Status, op string) error {
	var allowed bool
	switch to {
	case StatusConfirmed:
		allowed = s.Status == StatusDraft
	case StatusDelivered, StatusCanceled:
		allowed = s.Status == StatusConfirmed
	}
	if !allowed {
		return apperror.NewInvalidState("sale", string(s.Status), op).
			WithDetail("sale_id", s.ID.String())
	}
	return nil
}
