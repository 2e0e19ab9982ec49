package sales

import (
	"context"

	"retailops/internal/core/id"
)

// Repository persists sales.
type Repository interface {
	// Create inserts the header and its lines.
	Create(ctx context.Context, sale *Sale) error

	// GetByID loads the sale with lines. Missing sales yield apperror NotFound.
	GetByID(ctx context.Context, tenantID string, saleID id.ID) (*Sale, error)

	// GetForUpdate is GetByID with the header row locked until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, tenantID string, saleID id.ID) (*Sale, error)

	// UpdateStatus writes status and updated_at.
	UpdateStatus(ctx context.Context, sale *Sale) error
}
