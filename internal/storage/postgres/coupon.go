package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopkart/shopkart/internal/domain/coupon"
)

const (
	findCouponsByCodesSQL = `SELECT id, code, type, value, max_discount, min_amount,
		usage_limit, used_count, per_user_limit, is_global, product_ids,
		starts_at, ends_at, active
		FROM coupons
		WHERE UPPER(code) = ANY($1) AND deleted_at IS NULL`

	countUserUsageSQL = `SELECT COUNT(*) FROM coupon_usages
		WHERE user_id = $1 AND coupon_id = $2`

	usedProductIDsSQL = `SELECT product_id FROM coupon_usages
		WHERE user_id = $1 AND coupon_id = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCodes returns all non-deleted coupons matching the given codes
// (case-insensitive). Unknown codes are simply absent from the result; the
// allocator reports those itself.
func (r *CouponRepository) FindByCodes(ctx context.Context, codes []string) ([]coupon.Coupon, error) {
	upper := make([]string, len(codes))
	for i, c := range codes {
		upper[i] = strings.ToUpper(c)
	}

	rows, err := r.pool.Query(ctx, findCouponsByCodesSQL, upper)
	if err != nil {
		return nil, fmt.Errorf("finding coupons by codes: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// CountUserUsage returns the number of usage ledger rows for (userID, couponID).
func (r *CouponRepository) CountUserUsage(ctx context.Context, userID, couponID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countUserUsageSQL, userID, couponID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting usage for coupon %q: %w", couponID, err)
	}
	return count, nil
}

// UsedProductIDs returns the products the user has already consumed this
// coupon against.
func (r *CouponRepository) UsedProductIDs(ctx context.Context, userID, couponID string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, usedProductIDsSQL, userID, couponID)
	if err != nil {
		return nil, fmt.Errorf("finding used products for coupon %q: %w", couponID, err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("finding used products for coupon %q: %w", couponID, err)
	}

	used := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		used[id] = struct{}{}
	}
	return used, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c           coupon.Coupon
		ctype       string
		value       decimal.Decimal
		maxDiscount decimal.Decimal
		minAmount   decimal.Decimal
		usageLimit  int32
		usedCount   int32
		perUser     int32
		productIDs  []string
		startsAt    *time.Time
		endsAt      *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &ctype, &value, &maxDiscount, &minAmount,
		&usageLimit, &usedCount, &perUser, &c.Global, &productIDs,
		&startsAt, &endsAt, &c.Active,
	)
	c.Type = coupon.Type(ctype)
	c.Value = value
	c.MaxDiscount = maxDiscount
	c.MinAmount = minAmount
	c.UsageLimit = int(usageLimit)
	c.UsedCount = int(usedCount)
	c.PerUserLimit = int(perUser)
	c.ProductIDs = productIDs
	c.StartsAt = startsAt
	c.EndsAt = endsAt
	return c, err
}
