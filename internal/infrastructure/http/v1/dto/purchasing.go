package dto

import (
	"fmt"
	"time"

	"retailops/internal/core/types"
	"retailops/internal/domain/purchasing"
)

// CreatePurchaseOrderRequest is the body of POST /purchase-orders.
type CreatePurchaseOrderRequest struct {
	Reference    string                     `json:"reference,omitempty"`
	SupplierID   string                     `json:"supplierId" binding:"required"`
	ExpectedDate *time.Time                 `json:"expectedDate,omitempty"`
	Tax          *types.Money               `json:"tax,omitempty"`
	Notes        string                     `json:"notes,omitempty"`
	Lines        []PurchaseOrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PurchaseOrderLineRequest is one ordered line.
type PurchaseOrderLineRequest struct {
	ProductID  string      `json:"productId" binding:"required"`
	VariantSKU string      `json:"variantSku,omitempty"`
	Quantity   int64       `json:"quantity" binding:"required"`
	UnitCost   types.Money `json:"unitCost"`
}

// ToInput converts the request to the service input.
func (r *CreatePurchaseOrderRequest) ToInput() (purchasing.CreateInput, error) {
	supplierID, err := ParseID("supplierId", r.SupplierID)
	if err != nil {
		return purchasing.CreateInput{}, err
	}
	in := purchasing.CreateInput{
		Reference:    r.Reference,
		SupplierID:   supplierID,
		ExpectedDate: r.ExpectedDate,
		Tax:          moneyOrZero(r.Tax),
		Notes:        r.Notes,
		Lines:        make([]purchasing.CreateLine, 0, len(r.Lines)),
	}
	for i, l := range r.Lines {
		productID, err := ParseID(fmt.Sprintf("lines[%d].productId", i), l.ProductID)
		if err != nil {
			return purchasing.CreateInput{}, err
		}
		in.Lines = append(in.Lines, purchasing.CreateLine{
			ProductID:       productID,
			VariantSKU:      l.VariantSKU,
			QuantityOrdered: l.Quantity,
			UnitCost:        l.UnitCost,
		})
	}
	return in, nil
}

// ReceiveRequest is the body of POST /purchase-orders/:id/receive.
// Omitting lines receives everything outstanding; an empty list receives
// nothing.
type ReceiveRequest struct {
	Lines []ReceiveLineRequest `json:"lines"`
}

// ReceiveLineRequest is one requested receipt quantity.
type ReceiveLineRequest struct {
	ProductID  string `json:"productId" binding:"required"`
	VariantSKU string `json:"variantSku,omitempty"`
	Quantity   int64  `json:"quantity"`
}

// ToLines converts the request; nil means receive all outstanding.
func (r *ReceiveRequest) ToLines() ([]purchasing.ReceiveLine, error) {
	if r.Lines == nil {
		return nil, nil
	}
	out := make([]purchasing.ReceiveLine, 0, len(r.Lines))
	for i, l := range r.Lines {
		productID, err := ParseID(fmt.Sprintf("lines[%d].productId", i), l.ProductID)
		if err != nil {
			return nil, err
		}
		out = append(out, purchasing.ReceiveLine{
			ProductID:  productID,
			VariantSKU: l.VariantSKU,
			Quantity:   l.Quantity,
		})
	}
	return out, nil
}

// ReceiveResponse is the outcome of a receive call.
type ReceiveResponse struct {
	Order   *purchasing.PurchaseOrder `json:"order"`
	Receipt *purchasing.GoodsReceipt  `json:"receipt,omitempty"`
}
