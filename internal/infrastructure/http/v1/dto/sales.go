package dto

import (
	"fmt"
	"time"

	"retailops/internal/core/types"
	"retailops/internal/domain/sales"
)

// CreateSaleRequest is the body of POST /sales.
type CreateSaleRequest struct {
	CustomerID string            `json:"customerId,omitempty"`
	SaleDate   *time.Time        `json:"saleDate,omitempty"`
	Discount   *types.Money      `json:"discount,omitempty"`
	Tax        *types.Money      `json:"tax,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Lines      []SaleLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// SaleLineRequest is one sold line.
type SaleLineRequest struct {
	ProductID  string      `json:"productId" binding:"required"`
	VariantSKU string      `json:"variantSku,omitempty"`
	Quantity   int64       `json:"quantity" binding:"required"`
	UnitPrice  types.Money `json:"unitPrice"`
}

// ToInput converts the request to the service input.
func (r *CreateSaleRequest) ToInput() (sales.CreateInput, error) {
	customerID, err := parseOptionalID("customerId", r.CustomerID)
	if err != nil {
		return sales.CreateInput{}, err
	}
	in := sales.CreateInput{
		CustomerID: customerID,
		Discount:   moneyOrZero(r.Discount),
		Tax:        moneyOrZero(r.Tax),
		Notes:      r.Notes,
		Lines:      make([]sales.CreateLine, 0, len(r.Lines)),
	}
	if r.SaleDate != nil {
		in.SaleDate = *r.SaleDate
	}
	for i, l := range r.Lines {
		productID, err := ParseID(fmt.Sprintf("lines[%d].productId", i), l.ProductID)
		if err != nil {
			return sales.CreateInput{}, err
		}
		in.Lines = append(in.Lines, sales.CreateLine{
			ProductID:  productID,
			VariantSKU: l.VariantSKU,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		})
	}
	return in, nil
}
