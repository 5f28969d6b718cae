// Package core holds the ledger's domain types.
//
// Amounts are decimals with two fractional digits. They are never carried
// as float64 so that sums computed by the database round-trip exactly.
package core

import (
	"bytes"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits kept for an amount.
const AmountScale = 2

// maxAmount is the exclusive bound of a DECIMAL(10,2) column.
var maxAmount = decimal.New(1, 8)

// Amount is a signed monetary value. Positive amounts are income and
// negative amounts are expenses by convention only.
type Amount struct {
	decimal.Decimal
}

// NewAmount builds an amount from a decimal, rounded to AmountScale.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(AmountScale)}
}

// AmountFromCents builds an amount from an integer number of cents.
func AmountFromCents(cents int64) Amount {
	return Amount{Decimal: decimal.New(cents, -AmountScale)}
}

// ParseAmount parses a decimal string such as "-4.5".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	return NewAmount(d), nil
}

// Cents returns the amount as an integer number of cents, rounding half
// away from zero.
func (a Amount) Cents() int64 {
	return a.Decimal.Shift(AmountScale).Round(0).IntPart()
}

// InRange reports whether the amount fits a DECIMAL(10,2) column.
func (a Amount) InRange() bool {
	return a.Decimal.Abs().Round(AmountScale).LessThan(maxAmount)
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Add(b.Decimal)}
}

// Equal compares by value, ignoring representation.
func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Equal(b.Decimal)
}

func (a Amount) String() string {
	return a.Decimal.StringFixed(AmountScale)
}

// MarshalJSON renders the amount as a JSON number with two fractional digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. The value is kept
// exact so that validation sees what the client sent; storage rounds it.
func (a *Amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrInvalidAmount
	}
	*a = Amount{Decimal: d}
	return nil
}
