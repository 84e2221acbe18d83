package coupon

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Applied reports one successfully allocated coupon.
type Applied struct {
	CouponID string
	Code     string
	Amount   decimal.Decimal
	// Basis is the eligible subtotal the discount was computed against.
	Basis decimal.Decimal
}

// Increment is a pending used-count bump for one coupon, to be executed as a
// conditional UPDATE inside the order transaction.
type Increment struct {
	CouponID string
	Code     string
}

// Result is the outcome of allocating a batch of coupon codes against an
// order's lines. Usages and Increments are tentative writes: the order
// transaction persists them atomically with the order itself and may still
// demote an applied coupon if a concurrent checkout wins the race at commit
// time.
type Result struct {
	Applied       []Applied
	Failed        []Failure
	TotalDiscount decimal.Decimal
	Lines         []Line
	Usages        []Usage
	Increments    []Increment
}

// Success reports whether at least one coupon applied. Zero applied coupons
// is not an order-blocking condition; callers proceed with a zero discount.
func (r *Result) Success() bool {
	return len(r.Applied) > 0
}

// Allocator sequentially applies a batch of coupon codes to an order's lines,
// accumulating the total discount and a per-code success/failure report.
type Allocator struct {
	repo Repository
	now  func() time.Time
}

// NewAllocator creates an Allocator backed by the given Repository.
func NewAllocator(repo Repository) *Allocator {
	return &Allocator{repo: repo, now: time.Now}
}

// Apply validates each coupon code against the user and lines, computes
// discounts, and accumulates the result. Coupons are attempted percentage
// type first, then by descending value, so the higher-impact discounts land
// first. One coupon's rejection never aborts the batch; only repository
// failures are returned as errors.
//
// Every coupon's discount is computed against the gross eligible subtotal:
// stacked coupons do not see each other's reductions. Double application to
// the same product is prevented by the usage ledger instead.
func (a *Allocator) Apply(ctx context.Context, userID string, codes []string, lines []Line) (*Result, error) {
	res := &Result{
		TotalDiscount: decimal.Zero,
		Lines:         cloneLines(lines),
	}
	if len(codes) == 0 {
		return res, nil
	}

	coupons, err := a.repo.FindByCodes(ctx, codes)
	if err != nil {
		return nil, errors.Wrap(err, "find coupons")
	}

	byCode := make(map[string]*Coupon, len(coupons))
	for i := range coupons {
		byCode[strings.ToUpper(coupons[i].Code)] = &coupons[i]
	}

	// Unknown codes fail immediately; the rest are ordered by policy.
	candidates := make([]*Coupon, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		key := strings.ToUpper(code)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		c, ok := byCode[key]
		if !ok {
			res.Failed = append(res.Failed, Failure{
				Code:    code,
				Reason:  ReasonNotFound,
				Message: "coupon code not found",
			})
			continue
		}
		candidates = append(candidates, c)
	}
	sortByImpact(candidates)

	for _, c := range candidates {
		amount, eligible, err := a.applyOne(ctx, userID, c, res.Lines)
		if err != nil {
			var rej *Rejection
			if errors.As(err, &rej) {
				res.Failed = append(res.Failed, Failure{
					Code:    c.Code,
					Reason:  rej.Reason,
					Message: rej.Message,
				})
				continue
			}
			return nil, errors.Wrapf(err, "apply coupon %s", c.Code)
		}

		a.record(res, userID, c, amount, eligible)
	}

	return res, nil
}

// applyOne runs the validation gates for a single coupon and computes its
// discount. It returns a *Rejection error when any gate fails.
func (a *Allocator) applyOne(ctx context.Context, userID string, c *Coupon, lines []Line) (decimal.Decimal, []Line, error) {
	if !c.Active {
		return decimal.Zero, nil, reject(ReasonInactive, "coupon %s is not active", c.Code)
	}

	now := a.now()
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return decimal.Zero, nil, reject(ReasonNotYetValid, "coupon %s is not valid yet", c.Code)
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return decimal.Zero, nil, reject(ReasonExpired, "coupon %s has expired", c.Code)
	}

	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return decimal.Zero, nil, reject(ReasonGlobalLimit, "coupon %s has reached its usage limit", c.Code)
	}

	if c.PerUserLimit > 0 {
		count, err := a.repo.CountUserUsage(ctx, userID, c.ID)
		if err != nil {
			return decimal.Zero, nil, errors.Wrap(err, "count user usage")
		}
		if count >= c.PerUserLimit {
			return decimal.Zero, nil, reject(ReasonPerUserLimit, "coupon %s has reached its per-user limit", c.Code)
		}
	}

	used, err := a.repo.UsedProductIDs(ctx, userID, c.ID)
	if err != nil {
		return decimal.Zero, nil, errors.Wrap(err, "find used products")
	}

	eligible, err := FilterEligible(c, lines, used)
	if err != nil {
		return decimal.Zero, nil, err
	}

	amount, err := ComputeDiscount(c, eligible)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, nil, reject(ReasonNotApplicable, "coupon %s yields no discount for this order", c.Code)
	}

	return amount, eligible, nil
}

// record folds a successful application into the result: total accumulation,
// per-line bookkeeping, and the pending usage/increment writes.
func (a *Allocator) record(res *Result, userID string, c *Coupon, amount decimal.Decimal, eligible []Line) {
	basis := EligibleTotal(eligible)

	res.TotalDiscount = res.TotalDiscount.Add(amount)
	res.Applied = append(res.Applied, Applied{
		CouponID: c.ID,
		Code:     c.Code,
		Amount:   amount,
		Basis:    basis,
	})
	res.Increments = append(res.Increments, Increment{CouponID: c.ID, Code: c.Code})

	eligibleIDs := make(map[string]struct{}, len(eligible))
	for _, l := range eligible {
		eligibleIDs[l.ProductID] = struct{}{}
	}

	for i := range res.Lines {
		l := &res.Lines[i]
		if _, ok := eligibleIDs[l.ProductID]; !ok {
			continue
		}

		l.Applied = append(l.Applied, Application{
			CouponID: c.ID,
			Code:     c.Code,
			Amount:   amount,
			Basis:    basis,
		})
		l.Discount = decimal.Zero
		for _, app := range l.Applied {
			l.Discount = l.Discount.Add(app.Amount)
		}

		res.Usages = append(res.Usages, Usage{
			UserID:         userID,
			CouponID:       c.ID,
			ProductID:      l.ProductID,
			DiscountAmount: amount,
			OriginalPrice:  l.UnitPrice,
			Quantity:       l.Quantity,
		})
	}
}

// sortByImpact orders coupons percentage-type first, then by descending
// value. The sort is stable so equal coupons keep their submission order.
func sortByImpact(coupons []*Coupon) {
	sort.SliceStable(coupons, func(i, j int) bool {
		a, b := coupons[i], coupons[j]
		if a.Type != b.Type {
			return a.Type == TypePercentage
		}
		return a.Value.GreaterThan(b.Value)
	})
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = l
		out[i].Applied = append([]Application(nil), l.Applied...)
	}
	return out
}
