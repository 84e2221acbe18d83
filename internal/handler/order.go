package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shopkart/shopkart/internal/domain/coupon"
	"github.com/shopkart/shopkart/internal/domain/order"
)

// placeOrderRequest is the JSON body for POST /api/order.
type placeOrderRequest struct {
	UserID      string             `json:"userId"`
	Items       []orderItemRequest `json:"items"`
	CouponCodes []string           `json:"couponCodes"`
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	ID       string              `json:"id"`
	Items    []orderItemResponse `json:"items"`
	Products []productResponse   `json:"products"`
	Subtotal float64             `json:"subtotal"`
	Discount float64             `json:"discount"`
	Total    float64             `json:"total"`
	Applied  []appliedCoupon     `json:"appliedCoupons"`
	Failed   []failedCoupon      `json:"failedCoupons"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Discount  float64 `json:"discount"`
}

type appliedCoupon struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

type failedCoupon struct {
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// PlaceOrder creates an order from the requested items, applying any coupon
// codes that survive validation. Rejected codes are reported in the response
// rather than failing the request.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	result, err := h.orders.PlaceOrder(ctx, toServiceRequest(req))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toOrderResponse(result))
}

func toServiceRequest(req placeOrderRequest) order.PlaceOrderRequest {
	return order.PlaceOrderRequest{
		UserID:      req.UserID,
		Items:       toItemRequests(req.Items),
		CouponCodes: req.CouponCodes,
	}
}

// writeOrderError maps service errors onto HTTP statuses: malformed input is
// 400, an unknown product or exhausted stock in the order is 422, anything
// else is a generic 500.
func (h *Handler) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		notFound *order.ProductNotFoundError
		badQty   *order.InvalidQuantityError
		noStock  *order.InsufficientStockError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, "items are required")
	case errors.As(err, &badQty):
		writeError(w, http.StatusBadRequest, badQty.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusUnprocessableEntity, notFound.Error())
	case errors.As(err, &noStock):
		writeError(w, http.StatusUnprocessableEntity, noStock.Error())
	default:
		zctx.From(ctx).Error("place order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "order creation failed")
	}
}

func (h *Handler) toOrderResponse(result *order.PlaceOrderResult) orderResponse {
	o := result.Order

	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.InexactFloat64(),
			Discount:  it.Discount.InexactFloat64(),
		}
	}

	products := make([]productResponse, len(result.Products))
	for i, p := range result.Products {
		products[i] = h.toProductResponse(p)
	}

	return orderResponse{
		ID:       o.ID,
		Items:    items,
		Products: products,
		Subtotal: o.Subtotal.InexactFloat64(),
		Discount: o.Discount.InexactFloat64(),
		Total:    o.Total.InexactFloat64(),
		Applied:  toAppliedCoupons(result.Applied),
		Failed:   toFailedCoupons(result.Failed),
	}
}

func toAppliedCoupons(applied []coupon.Applied) []appliedCoupon {
	out := make([]appliedCoupon, len(applied))
	for i, a := range applied {
		out[i] = appliedCoupon{Code: a.Code, Amount: a.Amount.InexactFloat64()}
	}
	return out
}

func toFailedCoupons(failed []coupon.Failure) []failedCoupon {
	out := make([]failedCoupon, len(failed))
	for i, f := range failed {
		out[i] = failedCoupon{Code: f.Code, Reason: string(f.Reason), Message: f.Message}
	}
	return out
}
