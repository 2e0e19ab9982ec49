// Package inventory implements the ledger and snapshot engine: the only
// writer of stock levels and weighted-average cost for a product variant.
package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/types"
)

// SourceType identifies the kind of document behind a ledger entry.
type SourceType string

const (
	SourceReceipt       SourceType = "RECEIPT"
	SourceReceiptCancel SourceType = "RECEIPT-CANCEL"
	SourceSale          SourceType = "SALE"
	SourceSaleCancel    SourceType = "SALE-CANCEL"
	SourceAdjustment    SourceType = "ADJUSTMENT"
	SourceReturn        SourceType = "RETURN"
)

// Key identifies one stock position.
type Key struct {
	TenantID   string `db:"tenant_id" json:"tenantId"`
	ProductID  id.ID  `db:"product_id" json:"productId"`
	VariantSKU string `db:"variant_sku" json:"variantSku"`
}

// Validate checks that the key is fully populated.
func (k Key) Validate() error {
	if strings.TrimSpace(k.TenantID) == "" {
		return apperror.NewInvalidArgument("tenant is required")
	}
	if id.IsNil(k.ProductID) {
		return apperror.NewInvalidArgument("product_id is required")
	}
	return nil
}

// Less orders keys so multi-line postings lock rows in a stable order.
func (k Key) Less(o Key) bool {
	if k.TenantID != o.TenantID {
		return k.TenantID < o.TenantID
	}
	if c := strings.Compare(k.ProductID.String(), o.ProductID.String()); c != 0 {
		return c < 0
	}
	return k.VariantSKU < o.VariantSKU
}

// Snapshot is the current stock level and cost basis of one key.
type Snapshot struct {
	TenantID    string      `db:"tenant_id" json:"-"`
	ProductID   id.ID       `db:"product_id" json:"productId"`
	VariantSKU  string      `db:"variant_sku" json:"variantSku"`
	OnHand      int64       `db:"on_hand" json:"onHand"`
	AverageCost types.Money `db:"average_cost" json:"averageCost"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// Key returns the snapshot's key.
func (s *Snapshot) Key() Key {
	return Key{TenantID: s.TenantID, ProductID: s.ProductID, VariantSKU: s.VariantSKU}
}

// EmptySnapshot returns the zero position for key.
func EmptySnapshot(key Key) *Snapshot {
	return &Snapshot{
		TenantID:    key.TenantID,
		ProductID:   key.ProductID,
		VariantSKU:  key.VariantSKU,
		AverageCost: decimal.Zero,
	}
}

// LedgerEntry is an append-only stock journal row.
// Receipts carry UnitCostAtPosting; sales and their reversals carry
// AverageCostAtPosting.
type LedgerEntry struct {
	ID                   id.ID               `db:"id" json:"id"`
	TenantID             string              `db:"tenant_id" json:"-"`
	ProductID            id.ID               `db:"product_id" json:"productId"`
	VariantSKU           string              `db:"variant_sku" json:"variantSku"`
	Delta                int64               `db:"delta" json:"delta"`
	SourceType           SourceType          `db:"source_type" json:"sourceType"`
	SourceID             id.ID               `db:"source_id" json:"sourceId"`
	UnitCostAtPosting    decimal.NullDecimal `db:"unit_cost_at_posting" json:"unitCostAtPosting"`
	AverageCostAtPosting decimal.NullDecimal `db:"average_cost_at_posting" json:"averageCostAtPosting"`
	CreatedAt            time.Time           `db:"created_at" json:"createdAt"`
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	SourceType SourceType
	SourceID   id.ID
	Limit      int
}

// Item is one line of a multi-line posting.
type Item struct {
	ProductID  id.ID
	VariantSKU string
	Quantity   int64
}

// ReceiptPosting is the input of PostReceipt.
type ReceiptPosting struct {
	Key      Key
	Quantity int64
	UnitCost types.Money
	SourceID id.ID
}

// SalePosting is the input of PostSale.
type SalePosting struct {
	Key      Key
	Quantity int64
	SourceID id.ID
}
