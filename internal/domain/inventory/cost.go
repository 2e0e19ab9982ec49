package inventory

import (
	"github.com/shopspring/decimal"

	"retailops/internal/core/types"
)

// CostScale is the number of decimal places kept for average cost.
const CostScale = 8

// WeightedAverage blends the current cost basis with an incoming receipt:
//
//	(onHand*avg + qty*unitCost) / (onHand + qty)
//
// When the resulting stock is not positive the current average is kept.
func WeightedAverage(onHand int64, avg types.Money, qty int64, unitCost types.Money) types.Money {
	newOnHand := onHand + qty
	if newOnHand <= 0 {
		return avg
	}
	num := decimal.NewFromInt(onHand).Mul(avg).Add(decimal.NewFromInt(qty).Mul(unitCost))
	return num.DivRound(decimal.NewFromInt(newOnHand), CostScale)
}
