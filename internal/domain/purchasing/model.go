// Package purchasing implements the purchase order lifecycle: creation,
// partial receiving into stock and cancellation.
package purchasing

import (
	"fmt"
	"time"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/types"
)

// Status is the lifecycle state of a purchase order.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusOrdered           Status = "ordered"
	StatusPartiallyReceived Status = "partially_received"
	StatusReceived          Status = "received"
	StatusCancelled         Status = "cancelled"
)

// CanReceive reports whether goods may be received against the order.
func (s Status) CanReceive() bool {
	return s == StatusOrdered || s == StatusPartiallyReceived
}

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	ID           id.ID       `db:"id" json:"id"`
	TenantID     string      `db:"tenant_id" json:"-"`
	Reference    string      `db:"reference" json:"reference"`
	SupplierID   id.ID       `db:"supplier_id" json:"supplierId"`
	Status       Status      `db:"status" json:"status"`
	ExpectedDate *time.Time  `db:"expected_date" json:"expectedDate,omitempty"`
	ReceivedDate *time.Time  `db:"received_date" json:"receivedDate,omitempty"`
	Subtotal     types.Money `db:"subtotal" json:"subtotal"`
	Tax          types.Money `db:"tax" json:"tax"`
	Total        types.Money `db:"total" json:"total"`
	Notes        string      `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one ordered product variant.
type Line struct {
	ID               id.ID       `db:"id" json:"id"`
	PurchaseOrderID  id.ID       `db:"purchase_order_id" json:"-"`
	LineNo           int         `db:"line_no" json:"lineNo"`
	ProductID        id.ID       `db:"product_id" json:"productId"`
	VariantSKU       string      `db:"variant_sku" json:"variantSku"`
	QuantityOrdered  int64       `db:"quantity_ordered" json:"quantityOrdered"`
	QuantityReceived int64       `db:"quantity_received" json:"quantityReceived"`
	UnitCost         types.Money `db:"unit_cost" json:"unitCost"`
	LineTotal        types.Money `db:"line_total" json:"lineTotal"`
}

// Remaining returns the quantity still outstanding on the line.
func (l *Line) Remaining() int64 {
	return l.QuantityOrdered - l.QuantityReceived
}

// Matches reports whether the line is for the given product variant.
func (l *Line) Matches(productID id.ID, variantSKU string) bool {
	return l.ProductID == productID && l.VariantSKU == variantSKU
}

// FullyReceived reports whether every line has been received in full.
func (po *PurchaseOrder) FullyReceived() bool {
	for i := range po.Lines {
		if po.Lines[i].QuantityReceived != po.Lines[i].QuantityOrdered {
			return false
		}
	}
	return true
}

// ReceivedAny reports whether any quantity was received on any line.
func (po *PurchaseOrder) ReceivedAny() bool {
	for i := range po.Lines {
		if po.Lines[i].QuantityReceived > 0 {
			return true
		}
	}
	return false
}

// ComputeTotals recalculates line totals and header totals.
func (po *PurchaseOrder) ComputeTotals() {
	subtotal := types.Zero()
	for i := range po.Lines {
		l := &po.Lines[i]
		l.LineTotal = types.LineTotal(l.QuantityOrdered, l.UnitCost)
		subtotal = subtotal.Add(l.LineTotal)
	}
	po.Subtotal = subtotal
	po.Total = subtotal.Add(po.Tax)
}

// Validate checks header and line invariants.
func (po *PurchaseOrder) Validate() error {
	if id.IsNil(po.SupplierID) {
		return apperror.NewInvalidArgument("supplier_id is required")
	}
	if len(po.Lines) == 0 {
		return apperror.NewInvalidArgument("at least one line is required")
	}
	if po.Tax.IsNegative() {
		return apperror.NewInvalidArgument("tax must not be negative")
	}
	for i := range po.Lines {
		l := &po.Lines[i]
		if id.IsNil(l.ProductID) {
			return apperror.NewInvalidArgument(fmt.Sprintf("line %d: product_id is required", i+1)).
				WithDetail("line", i+1)
		}
		if l.QuantityOrdered <= 0 {
			return apperror.NewInvalidArgument(fmt.Sprintf("line %d: quantity must be positive", i+1)).
				WithDetail("line", i+1).
				WithDetail("variant_sku", l.VariantSKU)
		}
		if l.UnitCost.IsNegative() {
			return apperror.NewInvalidArgument(fmt.Sprintf("line %d: unit cost must not be negative", i+1)).
				WithDetail("line", i+1).
				WithDetail("variant_sku", l.VariantSKU)
		}
	}
	return nil
}

// ReceiveLine is one requested receipt quantity.
type ReceiveLine struct {
	ProductID  id.ID
	VariantSKU string
	Quantity   int64
}

// GoodsReceipt is the immutable audit record of one receiving event.
type GoodsReceipt struct {
	ID              id.ID         `db:"id" json:"id"`
	TenantID        string        `db:"tenant_id" json:"-"`
	Number          string        `db:"number" json:"number"`
	PurchaseOrderID id.ID         `db:"purchase_order_id" json:"purchaseOrderId"`
	ReceivedAt      time.Time     `db:"received_at" json:"receivedAt"`
	Lines           []ReceiptLine `db:"-" json:"lines"`
}

// ReceiptLine is a quantity actually posted to stock.
type ReceiptLine struct {
	GoodsReceiptID id.ID       `db:"goods_receipt_id" json:"-"`
	LineNo         int         `db:"line_no" json:"lineNo"`
	ProductID      id.ID       `db:"product_id" json:"productId"`
	VariantSKU     string      `db:"variant_sku" json:"variantSku"`
	Quantity       int64       `db:"quantity" json:"quantity"`
	UnitCost       types.Money `db:"unit_cost" json:"unitCost"`
}
