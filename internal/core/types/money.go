// Package types provides fixed-point value types used by the ledger.
package types

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits persisted for monetary values.
const MoneyScale int32 = 2

// Money represents a monetary value with full precision.
// Uses decimal.Decimal so repeated loss accumulation never drifts.
type Money = decimal.Decimal

// NewMoneyFromString parses a monetary value. Preferred over float constructors.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney parses s and panics on error. Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LossFor values qty units at unitPrice, rounded to MoneyScale.
// A negative qty yields a negative amount (used for reject corrections).
func LossFor(unitPrice Money, qty int64) Money {
	return unitPrice.Mul(decimal.NewFromInt(qty)).Round(MoneyScale)
}

// Normalize rounds m to the persisted scale.
func Normalize(m Money) Money {
	return m.Round(MoneyScale)
}
