package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount calculates one aggregate discount for the whole eligible
// set. The coupon is applied once to the eligible bundle, never fanned out
// per line.
//
// The result is rounded half-up to 2 decimal places and is guaranteed to
// satisfy 0 <= discount <= eligible subtotal, further clamped to MaxDiscount
// when one is set.
func ComputeDiscount(c *Coupon, eligible []Line) (decimal.Decimal, error) {
	total := EligibleTotal(eligible)

	if c.MinAmount.IsPositive() && total.LessThan(c.MinAmount) {
		return decimal.Zero, reject(ReasonMinimumNotMet,
			"order amount %s is below the minimum %s required by coupon %s",
			total.StringFixed(2), c.MinAmount.StringFixed(2), c.Code)
	}

	var amount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		amount = total.Mul(c.Value).Div(hundred)
	case TypeFixed:
		amount = decimal.Min(c.Value, total)
	default:
		return decimal.Zero, errors.Errorf("unsupported coupon type: %q", c.Type)
	}

	if c.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, c.MaxDiscount)
	}

	amount = amount.Round(2)

	// Re-assert the cap invariant after rounding. Clamp to the unrounded
	// total: rounding it up here could push the discount past the
	// eligible amount by half a cent.
	if amount.GreaterThan(total) {
		amount = total
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return amount, nil
}

// EligibleTotal returns the gross subtotal of the given lines.
func EligibleTotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}
