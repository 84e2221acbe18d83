package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopkart/shopkart/internal/domain/coupon"
)

// Order represents a completed customer order with pricing and discount
// details. Item quantities and unit prices are fixed at order time and never
// updated afterwards.
type Order struct {
	ID        string
	UserID    string
	Items     []Item
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	Coupons   []AppliedCoupon
	CreatedAt time.Time
}

// Item is a single order line with its price frozen at order time.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// AppliedCoupon records one coupon's contribution to an order.
type AppliedCoupon struct {
	CouponID string
	Code     string
	Amount   decimal.Decimal
}

// CreateParams bundles everything the order transaction persists atomically:
// the order itself, the allocator's tentative usage rows and counter
// increments, the stock decrements implied by the items, and the user's cart
// rows to delete.
type CreateParams struct {
	Order      *Order
	Applied    []coupon.Applied
	Usages     []coupon.Usage
	Increments []coupon.Increment
	ClearCart  bool
}

// Demotion reports a coupon that passed validation but lost at commit time:
// either a concurrent checkout inserted the same usage row first (race_lost)
// or the conditional used-count update found the global cap exhausted
// (global_limit_exceeded). The transaction proceeds without that coupon's
// discount.
type Demotion struct {
	CouponID string
	Code     string
	Reason   coupon.Reason
}

// Repository defines persistence for orders. Create runs a single database
// transaction covering the order row, items, order-coupon joins, usage
// ledger inserts, used-count increments, stock decrement, and cart clearing.
// It returns the coupons demoted by commit-time races; any other failure
// rolls back the whole transaction.
type Repository interface {
	Create(ctx context.Context, p CreateParams) ([]Demotion, error)
}
