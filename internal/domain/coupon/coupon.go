package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage applies a percentage-based discount to the eligible subtotal.
	TypePercentage Type = "percentage"
	// TypeFixed applies a fixed monetary discount capped at the eligible subtotal.
	TypeFixed Type = "fixed"
)

// Coupon defines a discount and its eligibility constraints. Zero values mean
// "unset": a zero MaxDiscount is no cap, a zero MinAmount is no threshold, and
// zero usage limits mean unlimited.
type Coupon struct {
	ID          string
	Code        string
	Type        Type
	Value       decimal.Decimal
	MaxDiscount decimal.Decimal
	MinAmount   decimal.Decimal
	UsageLimit  int
	UsedCount   int
	// PerUserLimit caps how many times a single user may apply this coupon.
	PerUserLimit int
	// Global coupons apply to any product; non-global coupons are restricted
	// to ProductIDs.
	Global     bool
	ProductIDs []string
	StartsAt   *time.Time
	EndsAt     *time.Time
	Active     bool
}

// Usage is one append-only ledger row per (user, coupon, product) application.
// The unique constraint on that triple is what prevents a user from applying
// the same coupon to the same product twice, including across concurrent
// checkouts.
type Usage struct {
	UserID         string
	CouponID       string
	ProductID      string
	DiscountAmount decimal.Decimal
	OriginalPrice  decimal.Decimal
	Quantity       int
	UsedAt         time.Time
}

// Application records one coupon's contribution to a line. Basis is the
// eligible subtotal the discount was computed against, which for stacked
// coupons is always the gross (undiscounted) amount.
type Application struct {
	CouponID string
	Code     string
	Amount   decimal.Decimal
	Basis    decimal.Decimal
}

// Line is the in-memory working unit the allocator operates on. It is derived
// from cart items at order-creation time and discarded once the order rows
// are persisted.
type Line struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
	Applied   []Application
	// Discount is the running sum of Applied amounts for this line.
	Discount decimal.Decimal
}

// Subtotal returns UnitPrice * Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Repository provides the read operations the allocator needs. Usage inserts
// and counter increments are deliberately absent: they are pending writes the
// allocator hands back to the order transaction, which persists them
// atomically with the rest of the order.
type Repository interface {
	// FindByCodes returns the coupons matching the given codes
	// (case-insensitive). Unknown codes are simply absent from the result.
	FindByCodes(ctx context.Context, codes []string) ([]Coupon, error)
	// CountUserUsage returns how many usage rows exist for (userID, couponID).
	CountUserUsage(ctx context.Context, userID, couponID string) (int, error)
	// UsedProductIDs returns the product IDs the user has already consumed
	// this coupon against.
	UsedProductIDs(ctx context.Context, userID, couponID string) (map[string]struct{}, error)
}
