// Package money holds the decimal helpers shared by the schedule, ledger and
// service layers. Every monetary value is rounded to cents at the point it is
// computed.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance below which an owed amount counts as settled.
var Epsilon = decimal.NewFromFloat(0.01)

// MinCaptureCents is the smallest amount the card processor accepts.
const MinCaptureCents int64 = 50

// Round2 rounds to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NonNegative clamps negative amounts to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Settled reports whether d is within Epsilon of zero (or below it).
func Settled(d decimal.Decimal) bool {
	return d.LessThanOrEqual(Epsilon)
}

// ToCents converts a dollar amount to integer cents.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts integer cents back to a dollar amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders an amount as "$X.XX", clamped at zero.
func Format(d decimal.Decimal) string {
	return fmt.Sprintf("$%s", NonNegative(d).StringFixed(2))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
