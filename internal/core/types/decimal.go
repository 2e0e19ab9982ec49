// Package types holds the money type used for prices, costs and balances.
package types

import (
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. Quantities stay int64; only money is
// decimal.
type Money = decimal.Decimal

// MustMoney parses s and panics on failure. Fixtures only.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Zero is the zero amount.
func Zero() Money { return decimal.Zero }

// LineTotal is quantity times unit price.
func LineTotal(quantity int64, unitPrice Money) Money {
	return decimal.NewFromInt(quantity).Mul(unitPrice)
}

// ClampZero floors m at zero.
func ClampZero(m Money) Money {
	return decimal.Max(m, decimal.Zero)
}
