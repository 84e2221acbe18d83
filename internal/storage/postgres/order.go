package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopkart/shopkart/internal/domain/coupon"
	"github.com/shopkart/shopkart/internal/domain/order"
)

const (
	insertUsageSQL = `INSERT INTO coupon_usages
		(user_id, coupon_id, product_id, discount_amount, original_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// The conditional guard makes the global cap race-free: two concurrent
	// checkouts cannot both take the last use.
	incrementUsedCountSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)`

	insertOrderSQL = `INSERT INTO orders (id, user_id, subtotal, discount, total)
		VALUES ($1, $2, $3, $4, $5)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price, discount)
		VALUES ($1, $2, $3, $4, $5)`

	insertOrderCouponSQL = `INSERT INTO order_coupons (order_id, coupon_id, code, discount_amount)
		VALUES ($1, $2, $3, $4)`

	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	clearCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and the allocator's tentative writes in one
// transaction. Each coupon's usage inserts and counter increment run under a
// savepoint: a unique-constraint violation (a concurrent checkout inserted
// the same usage row first) or a zero-row conditional increment (the global
// cap ran out) rolls back only that coupon and demotes it, leaving the rest
// of the order intact. Every other failure rolls back the whole transaction.
func (r *OrderRepository) Create(ctx context.Context, p order.CreateParams) ([]order.Demotion, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	demotions, err := r.applyCoupons(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	if err := r.insertOrder(ctx, tx, p, demotions); err != nil {
		return nil, err
	}

	for _, item := range p.Order.Items {
		tag, err := tx.Exec(ctx, decrementStockSQL, item.ProductID, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("decrementing stock for %q: %w", item.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, &order.InsufficientStockError{ProductID: item.ProductID}
		}
	}

	if p.ClearCart {
		if _, err := tx.Exec(ctx, clearCartSQL, p.Order.UserID); err != nil {
			return nil, fmt.Errorf("clearing cart: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return demotions, nil
}

// applyCoupons persists the usage ledger rows and counter increments, one
// savepoint per coupon.
func (r *OrderRepository) applyCoupons(ctx context.Context, tx pgx.Tx, p order.CreateParams) ([]order.Demotion, error) {
	var demotions []order.Demotion

	for _, a := range p.Applied {
		demotion, err := r.applyCoupon(ctx, tx, a, p)
		if err != nil {
			return nil, err
		}
		if demotion != nil {
			demotions = append(demotions, *demotion)
		}
	}
	return demotions, nil
}

func (r *OrderRepository) applyCoupon(ctx context.Context, tx pgx.Tx, a coupon.Applied, p order.CreateParams) (*order.Demotion, error) {
	// pgx nests transactions via savepoints.
	sp, err := tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin savepoint for coupon %q: %w", a.Code, err)
	}

	demote := func(reason coupon.Reason) (*order.Demotion, error) {
		if err := sp.Rollback(ctx); err != nil {
			return nil, fmt.Errorf("rollback savepoint for coupon %q: %w", a.Code, err)
		}
		return &order.Demotion{CouponID: a.CouponID, Code: a.Code, Reason: reason}, nil
	}

	for _, u := range p.Usages {
		if u.CouponID != a.CouponID {
			continue
		}
		_, err := sp.Exec(ctx, insertUsageSQL,
			u.UserID, u.CouponID, u.ProductID, u.DiscountAmount, u.OriginalPrice, u.Quantity,
		)
		if isUniqueViolation(err) {
			// A concurrent checkout won the (user, coupon, product) race.
			return demote(coupon.ReasonRaceLost)
		}
		if err != nil {
			return nil, fmt.Errorf("inserting usage for coupon %q: %w", a.Code, err)
		}
	}

	tag, err := sp.Exec(ctx, incrementUsedCountSQL, a.CouponID)
	if err != nil {
		return nil, fmt.Errorf("incrementing used count for coupon %q: %w", a.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return demote(coupon.ReasonGlobalLimit)
	}

	if err := sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("release savepoint for coupon %q: %w", a.Code, err)
	}
	return nil, nil
}

// insertOrder writes the order row, its items, and the order-coupon joins for
// the coupons that survived commit.
func (r *OrderRepository) insertOrder(ctx context.Context, tx pgx.Tx, p order.CreateParams, demotions []order.Demotion) error {
	lost := make(map[string]struct{}, len(demotions))
	for _, d := range demotions {
		lost[d.CouponID] = struct{}{}
	}

	discount := decimal.Zero
	surviving := make([]coupon.Applied, 0, len(p.Applied))
	for _, a := range p.Applied {
		if _, ok := lost[a.CouponID]; ok {
			continue
		}
		surviving = append(surviving, a)
		discount = discount.Add(a.Amount)
	}

	discount = discount.Round(2)
	total := p.Order.Subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	// Per-item discounts are rebuilt from the usage rows of surviving coupons
	// so demoted coupons leave no trace on the item rows either.
	survivingIDs := make(map[string]struct{}, len(surviving))
	for _, a := range surviving {
		survivingIDs[a.CouponID] = struct{}{}
	}
	itemDiscount := make(map[string]decimal.Decimal, len(p.Order.Items))
	for _, u := range p.Usages {
		if _, ok := survivingIDs[u.CouponID]; !ok {
			continue
		}
		itemDiscount[u.ProductID] = itemDiscount[u.ProductID].Add(u.DiscountAmount)
	}

	o := p.Order
	if _, err := tx.Exec(ctx, insertOrderSQL, o.ID, o.UserID, o.Subtotal, discount, total); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err := tx.Exec(ctx, insertOrderItemSQL,
			o.ID, item.ProductID, item.Quantity, item.UnitPrice, itemDiscount[item.ProductID],
		)
		if err != nil {
			return fmt.Errorf("creating order item %q: %w", item.ProductID, err)
		}
	}

	for _, a := range surviving {
		_, err := tx.Exec(ctx, insertOrderCouponSQL, o.ID, a.CouponID, a.Code, a.Amount)
		if err != nil {
			return fmt.Errorf("creating order coupon %q: %w", a.Code, err)
		}
	}

	return nil
}
