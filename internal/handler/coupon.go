package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopkart/shopkart/internal/domain/order"
)

// validateCouponsRequest is the JSON body for POST /api/coupon/validate.
// It mirrors the order request; nothing is persisted.
type validateCouponsRequest struct {
	UserID      string             `json:"userId"`
	Items       []orderItemRequest `json:"items"`
	CouponCodes []string           `json:"couponCodes"`
}

type validateCouponsResponse struct {
	Subtotal float64         `json:"subtotal"`
	Discount float64         `json:"discount"`
	Total    float64         `json:"total"`
	Applied  []appliedCoupon `json:"appliedCoupons"`
	Failed   []failedCoupon  `json:"failedCoupons"`
}

// ValidateCoupons previews the discount an order would receive: it runs the
// full allocation against the current catalog and coupon state without
// reserving any usage. The preview can still differ from the final order if
// a concurrent checkout claims a coupon in between.
func (h *Handler) ValidateCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validateCouponsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := h.orders.Quote(ctx, order.PlaceOrderRequest{
		UserID:      req.UserID,
		Items:       toItemRequests(req.Items),
		CouponCodes: req.CouponCodes,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, validateCouponsResponse{
		Subtotal: quote.Subtotal.InexactFloat64(),
		Discount: quote.Discount.InexactFloat64(),
		Total:    quote.Total.InexactFloat64(),
		Applied:  toAppliedCoupons(quote.Applied),
		Failed:   toFailedCoupons(quote.Failed),
	})
}

func toItemRequests(items []orderItemRequest) []order.ItemRequest {
	out := make([]order.ItemRequest, len(items))
	for i, it := range items {
		out[i] = order.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}
