package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency represents a currency code (ISO 4217)
type Currency string

// ZAR is the only currency handled by the bookkeeping engines
const ZAR Currency = "ZAR"

// DefaultCurrency is the default currency for the system
const DefaultCurrency = ZAR

// CurrencySymbol is printed in front of formatted amounts
const CurrencySymbol = "R"

const centsPerUnit = 100

var hundred = decimal.NewFromInt(centsPerUnit)

// Money is an immutable amount held as an integer number of cents.
// Arithmetic never goes through floating point; fractional results are
// rounded half-to-even (banker's rounding).
type Money struct {
	cents int64
}

// NewMoneyFromCents creates Money from an integer cent amount
func NewMoneyFromCents(cents int64) Money {
	return Money{cents: cents}
}

// NewMoneyFromDecimal creates Money from a decimal major-unit amount, rounding half-to-even to cents
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{cents: amount.Mul(hundred).RoundBank(0).IntPart()}
}

// NewMoneyFromString parses a major-unit amount such as "3450.00".
// More than two fractional digits are rounded half-to-even.
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoneyFromDecimal(d), nil
}

// Zero returns a zero-value Money
func Zero() Money {
	return Money{}
}

// Cents returns the amount in cents
func (m Money) Cents() int64 {
	return m.cents
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.cents, -2)
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return DefaultCurrency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.cents == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.cents > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.cents < 0
}

// Add returns the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{cents: m.cents + other.cents}
}

// Subtract returns the difference
func (m Money) Subtract(other Money) Money {
	return Money{cents: m.cents - other.cents}
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{cents: -m.cents}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	if m.cents < 0 {
		return Money{cents: -m.cents}
	}
	return m
}

// Min returns the smaller of the two amounts
func (m Money) Min(other Money) Money {
	if other.cents < m.cents {
		return other
	}
	return m
}

// Multiply scales the amount by factor and rounds half-to-even to whole cents
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{cents: decimal.NewFromInt(m.cents).Mul(factor).RoundBank(0).IntPart()}
}

// Percentage returns pct percent of the amount, rounded half-to-even to whole cents
func (m Money) Percentage(pct decimal.Decimal) Money {
	return m.Multiply(pct.Div(hundred))
}

// WithinTolerance reports whether m differs from target by no more than pct percent of target
func (m Money) WithinTolerance(target Money, pct decimal.Decimal) bool {
	return m.Subtract(target).Abs().cents <= target.Abs().Percentage(pct).cents
}

// Split divides the amount into n parts that sum exactly to the original.
// The remainder cents go to the first parts.
func (m Money) Split(n int) ([]Money, error) {
	if n <= 0 {
		return nil, errors.New("split count must be positive")
	}
	base := m.cents / int64(n)
	rem := m.cents % int64(n)
	parts := make([]Money, n)
	for i := range parts {
		parts[i] = Money{cents: base}
		if int64(i) < rem {
			parts[i].cents++
		} else if rem < 0 && int64(i) < -rem {
			parts[i].cents--
		}
	}
	return parts, nil
}

// Equals returns true if both amounts are equal
func (m Money) Equals(other Money) bool {
	return m.cents == other.cents
}

// LessThan returns true if m < other
func (m Money) LessThan(other Money) bool {
	return m.cents < other.cents
}

// GreaterThan returns true if m > other
func (m Money) GreaterThan(other Money) bool {
	return m.cents > other.cents
}

// GreaterThanOrEqual returns true if m >= other
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.cents >= other.cents
}

// String returns the amount with two decimals, e.g. "3450.00"
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the amount for people, grouping thousands per the given locale,
// e.g. "R 3,450.00" for English.
func (m Money) Format(tag language.Tag) string {
	abs := m.Abs().cents
	p := message.NewPrinter(tag)
	out := fmt.Sprintf("%s %s.%02d", CurrencySymbol, p.Sprintf("%d", abs/centsPerUnit), abs%centsPerUnit)
	if m.cents < 0 {
		return "-" + out
	}
	return out
}

// MarshalJSON encodes the amount as integer cents
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.cents)
}

// UnmarshalJSON decodes integer cents
func (m *Money) UnmarshalJSON(data []byte) error {
	var cents int64
	if err := json.Unmarshal(data, &cents); err != nil {
		return fmt.Errorf("money must be integer cents: %w", err)
	}
	m.cents = cents
	return nil
}

// SumCents adds a list of cent amounts
func SumCents(values []int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}
