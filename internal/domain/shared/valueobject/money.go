package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary precision and comparison tolerances. Amounts are stored with two
// decimal places; two amounts are considered equal when they differ by at most
// one cent, two rates when they differ by at most 0.005 percentage points.
const MonetaryScale = 2

var (
	// AmountTolerance is the equality tolerance for monetary amounts (€0.01).
	AmountTolerance = decimal.NewFromFloat(0.01)
	// RateTolerance is the equality tolerance for percentage rates (0.005 pp).
	RateTolerance = decimal.NewFromFloat(0.005)
)

// RoundHalfUp rounds a decimal to two places, half away from zero. Every
// monetary value crossing a boundary (persistence, API, schedule entry) goes
// through this.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(MonetaryScale)
}

// AmountsEqual reports whether two monetary amounts are equal within the
// one-cent tolerance.
func AmountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}

// RatesEqual reports whether two percentage rates are equal within 0.005 pp.
func RatesEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(RateTolerance)
}

// Money is an immutable EUR monetary amount. All arithmetic returns new
// values; rounding to two decimals happens explicitly via Rounded, not on
// every operation, so intermediate sums keep full precision.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal amount.
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromFloat creates Money from a float64 value.
func NewMoneyFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount)}
}

// NewMoneyFromString creates Money from a string representation.
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d}, nil
}

// Zero returns a zero-value Money.
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Rounded returns the amount rounded half-up to two decimals.
func (m Money) Rounded() Money {
	return Money{amount: RoundHalfUp(m.amount)}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is strictly positive.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is strictly negative.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns the sum of both amounts.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Sub returns the difference of both amounts.
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Mul multiplies the amount by a decimal factor.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor)}
}

// ApplyPercent applies a percent value (10.0 means 10%) and rounds the result
// to two decimals.
func (m Money) ApplyPercent(pct decimal.Decimal) Money {
	return Money{amount: RoundHalfUp(m.amount.Mul(pct).Div(decimal.NewFromInt(100)))}
}

// ApplyFraction applies a fractional rate (0.10 means 10%) and rounds the
// result to two decimals. Stage rates in agreement configurations are
// fractions to mirror the template schema.
func (m Money) ApplyFraction(rate decimal.Decimal) Money {
	return Money{amount: RoundHalfUp(m.amount.Mul(rate))}
}

// Equals reports equality within the one-cent tolerance.
func (m Money) Equals(other Money) bool {
	return AmountsEqual(m.amount, other.amount)
}

// GreaterThan reports whether m is strictly greater than other.
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// LessThan reports whether m is strictly less than other.
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// String returns the amount formatted with two decimals.
func (m Money) String() string {
	return m.amount.StringFixed(MonetaryScale)
}
