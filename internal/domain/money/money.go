// Package money provides the exact-decimal amount representation shared by
// the top-up workflow and the reconciliation engine. All monetary arithmetic
// in the system goes through this package so that rounding and the
// division-by-zero rules for percentages live in exactly one place.
package money

import (
	"github.com/shopspring/decimal"
)

// Amount is an exact-decimal monetary amount. It embeds decimal.Decimal so
// JSON and SQL marshalling come from the decimal library directly.
type Amount struct {
	decimal.Decimal
}

// NewFromString parses a decimal string such as "1000.00" into an Amount.
func NewFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{d}, nil
}

// NewFromDecimal wraps an existing decimal value.
func NewFromDecimal(d decimal.Decimal) Amount {
	return Amount{d}
}

// NewFromFloat converts a float64. Intended for configuration values only;
// monetary inputs should arrive as strings.
func NewFromFloat(f float64) Amount {
	return Amount{decimal.NewFromFloat(f)}
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{decimal.Zero}
}

// MustFromString parses s and panics on failure. For constants and tests.
func MustFromString(s string) Amount {
	a, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return Amount{a.Decimal.Add(b.Decimal)} }
func (a Amount) Sub(b Amount) Amount { return Amount{a.Decimal.Sub(b.Decimal)} }
func (a Amount) Neg() Amount         { return Amount{a.Decimal.Neg()} }
func (a Amount) Abs() Amount         { return Amount{a.Decimal.Abs()} }

// Cmp compares two amounts: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int { return a.Decimal.Cmp(b.Decimal) }

// Equal reports whether two amounts represent the same value.
func (a Amount) Equal(b Amount) bool { return a.Decimal.Equal(b.Decimal) }

// Round2 rounds to two decimal places, the smallest currency unit used
// throughout the system.
func (a Amount) Round2() Amount { return Amount{a.Decimal.Round(2)} }

// Percent returns p percent of a, rounded to two decimal places.
func (a Amount) Percent(p decimal.Decimal) Amount {
	return Amount{a.Decimal.Mul(p).Div(decimal.NewFromInt(100)).Round(2)}
}

// PercentageDifference computes diff as a percentage of base. When base is
// zero the result is 0 for a zero diff and 100 otherwise, so a spend
// appearing out of nowhere is always flagged at full magnitude instead of
// dividing by zero.
func PercentageDifference(diff, base Amount) decimal.Decimal {
	if base.IsZero() {
		if diff.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(100)
	}
	return diff.Decimal.Div(base.Decimal).Mul(decimal.NewFromInt(100)).Round(4)
}
