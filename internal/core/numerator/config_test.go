package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	period := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		cfg   Config
		value int64
		want  string
	}{
		{"invoice", InvoiceConfig(), 42, "INV-2024-000042"},
		{"invoice wide value", InvoiceConfig(), 1234567, "INV-2024-1234567"},
		{"purchase order", DefaultConfig("PO"), 7, "PO-2024-00007"},
		{"no year", Config{Prefix: "GRN", PadWidth: 3}, 9, "GRN-009"},
		{"default width", Config{Prefix: "X"}, 1, "X-00001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.cfg, period, tt.value))
		})
	}
}
