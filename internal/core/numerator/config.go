// Package numerator provides domain contracts for per-tenant sequence
// counters and document number formatting.
package numerator

import (
	"fmt"
	"time"
)

// Well-known counter keys.
const (
	KeyInvoice       = "invoice"
	KeyPurchaseOrder = "po"
	KeySaleOrder     = "order"
	KeyGoodsReceipt  = "grn"
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "INV", "PO")
	Prefix string

	// IncludeYear adds the four-digit year after the prefix
	IncludeYear bool

	// PadWidth is the minimum width of the numeric part
	PadWidth int
}

// DefaultConfig returns PREFIX-YYYY-NNNNN.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
	}
}

// InvoiceConfig renders INV-YYYY-NNNNNN.
func InvoiceConfig() Config {
	return Config{
		Prefix:      "INV",
		IncludeYear: true,
		PadWidth:    6,
	}
}

// Format renders a counter value as a document number.
func Format(cfg Config, period time.Time, value int64) string {
	width := cfg.PadWidth
	if width <= 0 {
		width = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%04d-%0*d", cfg.Prefix, period.Year(), width, value)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, width, value)
}
