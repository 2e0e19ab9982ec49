package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"retailops/internal/core/types"
)

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name     string
		onHand   int64
		avg      string
		qty      int64
		unitCost string
		want     string
	}{
		{"empty position takes receipt cost", 0, "0", 10, "5.00", "5"},
		{"equal blend", 10, "5.00", 10, "7.00", "6"},
		{"uneven blend", 1, "1", 2, "2", "1.66666667"},
		{"free goods dilute cost", 10, "4", 10, "0", "2"},
		{"non positive result keeps average", -5, "3.5", 5, "9", "3.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAverage(tt.onHand, types.MustMoney(tt.avg), tt.qty, types.MustMoney(tt.unitCost))
			assert.True(t, types.MustMoney(tt.want).Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestKeyLess(t *testing.T) {
	a := Key{TenantID: "t1", ProductID: uuidOf("00000000-0000-0000-0000-000000000001"), VariantSKU: "A"}
	b := Key{TenantID: "t1", ProductID: uuidOf("00000000-0000-0000-0000-000000000001"), VariantSKU: "B"}
	c := Key{TenantID: "t1", ProductID: uuidOf("00000000-0000-0000-0000-000000000002"), VariantSKU: "A"}

	keys := []Key{c, b, a}
	SortKeys(keys)

	assert.Equal(t, []Key{a, b, c}, keys)
	assert.False(t, a.Less(a))
}
