/*
money.go - Exact monetary arithmetic

PURPOSE:
  Money is the shared numeric primitive for the settlement engine. Every
  persisted monetary field is normalized to exactly 2 fractional digits
  before it is compared or stored, so equality is value equality and loop
  sentinels (zero) behave deterministically.

ROUNDING RULES:
  Mul (quantity x unit price): rounds half-up. This is what due-amount
  computation uses.
  Div (long-run averages):     rounds half-to-even (banker's rounding),
  so yearly averages do not drift upward.

  The two rules are intentional and different. Do not "unify" them.

DIVISION BY ZERO:
  Div returns ErrDivisionByZero. It is never silently coerced to zero;
  a zero sold quantity is a data problem the caller must see.

SEE ALSO:
  - engine.go: consumes Money as the allocation currency
  - errors.go: ErrDivisionByZero
*/
package settlement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

// Money is a decimal monetary amount normalized to 2 fractional digits.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// Zero returns 0.00.
func Zero() Money {
	return Money{}
}

// NewMoney normalizes d to 2 fractional digits, rounding half-up.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(moneyScale)}
}

// ParseMoney parses a decimal string such as "100.00" or "-70".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return NewMoney(d), nil
}

// MustMoney is ParseMoney for literals; panics on malformed input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// =============================================================================
// ARITHMETIC
// =============================================================================

func (m Money) Add(b Money) Money { return Money{d: m.d.Add(b.d)} }
func (m Money) Sub(b Money) Money { return Money{d: m.d.Sub(b.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }

// Mul scales the amount by a quantity and rounds half-up to 2 digits.
// Used for due-amount computation (quantity x unit price).
func (m Money) Mul(q decimal.Decimal) Money {
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative amounts this system multiplies.
	return Money{d: m.d.Mul(q).Round(moneyScale)}
}

// Div divides the amount by a quantity and rounds half-to-even to 2 digits.
// Used for long-run averages. A zero divisor is an error, never zero.
func (m Money) Div(q decimal.Decimal) (Money, error) {
	if q.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	return Money{d: m.d.Div(q).RoundBank(moneyScale)}, nil
}

// =============================================================================
// COMPARISON
// =============================================================================

// Cmp returns -1, 0 or +1. Comparison is value-based on the normalized
// magnitudes, so 10 == 10.00.
func (m Money) Cmp(b Money) int          { return m.d.Cmp(b.d) }
func (m Money) Equal(b Money) bool       { return m.d.Equal(b.d) }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }
func (m Money) GreaterThan(b Money) bool { return m.d.GreaterThan(b.d) }
func (m Money) LessThan(b Money) bool    { return m.d.LessThan(b.d) }

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders with exactly 2 fractional digits, e.g. "40.00".
func (m Money) String() string { return m.d.StringFixed(moneyScale) }

// =============================================================================
// JSON
// =============================================================================

// MarshalJSON renders the amount as a fixed-scale string ("100.00") so
// clients never see float artifacts.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both "100.00" and 100.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
