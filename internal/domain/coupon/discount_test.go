package coupon

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name    string
		coupon  Coupon
		lines   []Line
		want    string
		reason  Reason
		message string
	}{
		{
			name:   "percentage on single line",
			coupon: Coupon{Code: "SAVE10", Type: TypePercentage, Value: dec("10")},
			lines:  []Line{{ProductID: "p1", UnitPrice: dec("500"), Quantity: 2}},
			want:   "100.00",
		},
		{
			name:   "fixed capped by max discount",
			coupon: Coupon{Code: "FLAT50", Type: TypeFixed, Value: dec("50"), MaxDiscount: dec("30")},
			lines:  []Line{{ProductID: "p1", UnitPrice: dec("1000"), Quantity: 1}},
			want:   "30.00",
		},
		{
			name:   "fixed capped by subtotal",
			coupon: Coupon{Code: "FLAT50", Type: TypeFixed, Value: dec("50")},
			lines:  []Line{{ProductID: "p1", UnitPrice: dec("20"), Quantity: 1}},
			want:   "20.00",
		},
		{
			name:    "minimum amount not met",
			coupon:  Coupon{Code: "BIG20", Type: TypePercentage, Value: dec("20"), MinAmount: dec("2000")},
			lines:   []Line{{ProductID: "p1", UnitPrice: dec("1500"), Quantity: 1}},
			reason:  ReasonMinimumNotMet,
			message: "1500.00 is below the minimum 2000.00",
		},
		{
			name:   "minimum amount exactly met",
			coupon: Coupon{Code: "BIG20", Type: TypePercentage, Value: dec("20"), MinAmount: dec("2000")},
			lines:  []Line{{ProductID: "p1", UnitPrice: dec("2000"), Quantity: 1}},
			want:   "400.00",
		},
		{
			name:   "percentage rounds half up",
			coupon: Coupon{Code: "PCT", Type: TypePercentage, Value: dec("7.5")},
			lines:  []Line{{ProductID: "p1", UnitPrice: dec("33.33"), Quantity: 1}},
			// 33.33 * 0.075 = 2.49975 -> 2.50
			want: "2.50",
		},
		{
			name:   "percentage capped by max discount",
			coupon: Coupon{Code: "PCT50", Type: TypePercentage, Value: dec("50"), MaxDiscount: dec("100")},
			lines:  []Line{{ProductID: "p1", UnitPrice: dec("400"), Quantity: 1}},
			want:   "100.00",
		},
		{
			name:   "multiple eligible lines aggregate before discounting",
			coupon: Coupon{Code: "SAVE10", Type: TypePercentage, Value: dec("10")},
			lines: []Line{
				{ProductID: "p1", UnitPrice: dec("100"), Quantity: 1},
				{ProductID: "p2", UnitPrice: dec("50"), Quantity: 3},
			},
			want: "25.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDiscount(&tt.coupon, tt.lines)

			if tt.reason != "" {
				var rej *Rejection
				require.ErrorAs(t, err, &rej)
				assert.Equal(t, tt.reason, rej.Reason)
				if tt.message != "" {
					assert.Contains(t, rej.Message, tt.message)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestComputeDiscount_NeverExceedsEligibleTotal(t *testing.T) {
	// A fractional-cent subtotal rounds up; the discount must still stay
	// at or below the exact eligible total.
	c := Coupon{Code: "FREE", Type: TypePercentage, Value: dec("100")}
	lines := []Line{
		{ProductID: "p1", UnitPrice: dec("10.995"), Quantity: 1},
		{ProductID: "p2", UnitPrice: dec("5"), Quantity: 2},
	}

	got, err := ComputeDiscount(&c, lines)
	require.NoError(t, err)

	total := EligibleTotal(lines)
	assert.True(t, got.LessThanOrEqual(total), "discount %s exceeds eligible total %s", got, total)
	assert.True(t, got.Equal(dec("20.995")))
}

func TestComputeDiscount_UnsupportedType(t *testing.T) {
	c := Coupon{Code: "ODD", Type: Type("bogus"), Value: dec("10")}
	_, err := ComputeDiscount(&c, []Line{{ProductID: "p1", UnitPrice: dec("10"), Quantity: 1}})
	require.Error(t, err)

	var rej *Rejection
	assert.False(t, errors.As(err, &rej), "unsupported type is not a coupon-level rejection")
}

func TestComputeDiscount_Deterministic(t *testing.T) {
	c := Coupon{Code: "PCT", Type: TypePercentage, Value: dec("12.34")}
	lines := []Line{{ProductID: "p1", UnitPrice: dec("19.99"), Quantity: 3}}

	first, err := ComputeDiscount(&c, lines)
	require.NoError(t, err)

	for range 10 {
		again, err := ComputeDiscount(&c, lines)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
	assert.LessOrEqual(t, int(-first.Exponent()), 2, "at most 2 decimal places")
}

func TestComputeDiscount_CapInvariant(t *testing.T) {
	coupons := []Coupon{
		{Code: "A", Type: TypePercentage, Value: dec("100")},
		{Code: "B", Type: TypeFixed, Value: dec("999")},
		{Code: "C", Type: TypePercentage, Value: dec("33"), MaxDiscount: dec("5")},
		{Code: "D", Type: TypeFixed, Value: dec("0.01")},
	}
	lines := []Line{
		{ProductID: "p1", UnitPrice: dec("12.49"), Quantity: 2},
		{ProductID: "p2", UnitPrice: dec("0.99"), Quantity: 5},
	}
	total := EligibleTotal(lines)

	for _, c := range coupons {
		got, err := ComputeDiscount(&c, lines)
		require.NoError(t, err, c.Code)
		assert.False(t, got.IsNegative(), c.Code)
		assert.True(t, got.LessThanOrEqual(total.Round(2)), c.Code)
		if c.MaxDiscount.IsPositive() {
			assert.True(t, got.LessThanOrEqual(c.MaxDiscount), c.Code)
		}
	}
}
