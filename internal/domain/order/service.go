package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopkart/shopkart/internal/domain/cart"
	"github.com/shopkart/shopkart/internal/domain/coupon"
	"github.com/shopkart/shopkart/internal/domain/product"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates the conditional stock decrement found
// fewer units than the order requires.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID      string
	Items       []ItemRequest
	CouponCodes []string
}

// ItemRequest is one requested line.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
	Applied  []coupon.Applied
	Failed   []coupon.Failure
}

// Service encapsulates order placement business logic.
type Service struct {
	products  product.Repository
	allocator *coupon.Allocator
	orders    Repository
	carts     cart.Repository
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	allocator *coupon.Allocator,
	orders Repository,
	carts cart.Repository,
) *Service {
	return &Service{
		products:  products,
		allocator: allocator,
		orders:    orders,
		carts:     carts,
	}
}

// PlaceOrder validates items, fetches products in a single batch, allocates
// coupon discounts, and persists the order atomically with the allocator's
// tentative writes. Rejected coupon codes never block the order; they are
// reported in the result so the caller can message the user.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	q, err := s.quote(ctx, req)
	if err != nil {
		return nil, err
	}

	o := buildOrder(req.UserID, q.alloc, q.subtotal)

	demotions, err := s.orders.Create(ctx, CreateParams{
		Order:      o,
		Applied:    q.alloc.Applied,
		Usages:     q.alloc.Usages,
		Increments: q.alloc.Increments,
		ClearCart:  true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	applied, failed := applyDemotions(o, q.alloc, q.subtotal, demotions)

	return &PlaceOrderResult{
		Order:    o,
		Products: q.products,
		Applied:  applied,
		Failed:   failed,
	}, nil
}

// QuoteResult is a dry-run allocation preview: the pricing an order would get
// if placed now. Nothing is persisted and no usage is reserved.
type QuoteResult struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Applied  []coupon.Applied
	Failed   []coupon.Failure
}

// Quote runs the same validation and coupon allocation as PlaceOrder but
// stops short of the transaction. Checkout pages use it to preview discounts
// before the user commits.
func (s *Service) Quote(ctx context.Context, req PlaceOrderRequest) (*QuoteResult, error) {
	q, err := s.quote(ctx, req)
	if err != nil {
		return nil, err
	}

	return &QuoteResult{
		Subtotal: q.subtotal.Round(2),
		Discount: q.alloc.TotalDiscount.Round(2),
		Total:    finalTotal(q.subtotal, q.alloc.TotalDiscount),
		Applied:  q.alloc.Applied,
		Failed:   q.alloc.Failed,
	}, nil
}

// quoted carries the intermediate state shared by PlaceOrder and Quote.
type quoted struct {
	products []product.Product
	subtotal decimal.Decimal
	alloc    *coupon.Result
}

func (s *Service) quote(ctx context.Context, req PlaceOrderRequest) (*quoted, error) {
	// An empty item list means "check out my cart".
	if len(req.Items) == 0 {
		saved, err := s.carts.ListByUser(ctx, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "list cart")
		}
		for _, item := range saved {
			req.Items = append(req.Items, ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and coalesce repeated product lines so every
	// product appears at most once. A duplicate line would otherwise yield
	// two pending usage rows for the same (user, coupon, product) triple
	// and trip the unique constraint at commit.
	merged := make([]ItemRequest, 0, len(req.Items))
	index := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	req.Items = merged

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Verify every requested product was found and build the working lines.
	products := make([]product.Product, 0, len(req.Items))
	lines := make([]coupon.Line, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		products = append(products, p)

		lines[i] = coupon.Line{
			ProductID: item.ProductID,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
		}
		subtotal = subtotal.Add(lines[i].Subtotal())
	}

	// Allocate coupon discounts against the working lines. Coupon rejections
	// live inside the result; only infrastructure errors abort here.
	alloc, err := s.allocator.Apply(ctx, req.UserID, req.CouponCodes, lines)
	if err != nil {
		return nil, errors.Wrap(err, "allocate coupons")
	}

	return &quoted{products: products, subtotal: subtotal, alloc: alloc}, nil
}

// buildOrder assembles the order row from the allocation result.
func buildOrder(userID string, alloc *coupon.Result, subtotal decimal.Decimal) *Order {
	items := make([]Item, len(alloc.Lines))
	for i, l := range alloc.Lines {
		items[i] = Item{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Discount:  l.Discount,
		}
	}

	coupons := make([]AppliedCoupon, len(alloc.Applied))
	for i, a := range alloc.Applied {
		coupons[i] = AppliedCoupon{CouponID: a.CouponID, Code: a.Code, Amount: a.Amount}
	}

	return &Order{
		ID:       uuid.New().String(),
		UserID:   userID,
		Items:    items,
		Subtotal: subtotal.Round(2),
		Discount: alloc.TotalDiscount.Round(2),
		Total:    finalTotal(subtotal, alloc.TotalDiscount),
		Coupons:  coupons,
	}
}

// applyDemotions reconciles the in-memory order with the coupons the
// transaction demoted: their discounts are subtracted and they move from the
// applied list to the failed list.
func applyDemotions(o *Order, alloc *coupon.Result, subtotal decimal.Decimal, demotions []Demotion) ([]coupon.Applied, []coupon.Failure) {
	failed := alloc.Failed
	if len(demotions) == 0 {
		return alloc.Applied, failed
	}

	demoted := make(map[string]coupon.Reason, len(demotions))
	for _, d := range demotions {
		demoted[d.CouponID] = d.Reason
	}

	applied := make([]coupon.Applied, 0, len(alloc.Applied))
	discount := decimal.Zero
	for _, a := range alloc.Applied {
		reason, lost := demoted[a.CouponID]
		if !lost {
			applied = append(applied, a)
			discount = discount.Add(a.Amount)
			continue
		}
		failed = append(failed, coupon.Failure{
			Code:    a.Code,
			Reason:  reason,
			Message: fmt.Sprintf("coupon %s was claimed by a concurrent order", a.Code),
		})
	}

	o.Discount = discount.Round(2)
	o.Total = finalTotal(subtotal, discount)

	coupons := make([]AppliedCoupon, len(applied))
	for i, a := range applied {
		coupons[i] = AppliedCoupon{CouponID: a.CouponID, Code: a.Code, Amount: a.Amount}
	}
	o.Coupons = coupons

	return applied, failed
}

// finalTotal computes subtotal minus discount, floored at zero and rounded
// to 2 decimal places.
func finalTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}
