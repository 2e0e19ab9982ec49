package purchasing

import (
	"context"

	"retailops/internal/core/id"
)

// Repository persists purchase orders and goods receipts.
type Repository interface {
	// Create inserts the header and its lines.
	Create(ctx context.Context, po *PurchaseOrder) error

	// GetByID loads the order with lines. Missing orders yield apperror NotFound.
	GetByID(ctx context.Context, tenantID string, poID id.ID) (*PurchaseOrder, error)

	// GetForUpdate is GetByID with the header row locked until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, tenantID string, poID id.ID) (*PurchaseOrder, error)

	// Update writes header status, dates and received quantities.
	Update(ctx context.Context, po *PurchaseOrder) error

	// CreateReceipt inserts a goods receipt with its lines.
	CreateReceipt(ctx context.Context, gr *GoodsReceipt) error

	// ListReceipts returns receipts recorded against an order, oldest first.
	ListReceipts(ctx context.Context, tenantID string, poID id.ID) ([]GoodsReceipt, error)
}
