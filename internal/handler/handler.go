// Package handler exposes the storefront REST API over a chi router.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopkart/shopkart/internal/domain/order"
	"github.com/shopkart/shopkart/internal/domain/product"
	"github.com/shopkart/shopkart/pkg/httpmiddleware"
)

// Handler serves the public API: product catalog, order placement, and
// coupon validation previews.
type Handler struct {
	products     product.Repository
	orders       *order.Service
	imageBaseURL string
}

// NewHandler creates a Handler. imageBaseURL is prefixed onto relative
// product image paths in responses.
func NewHandler(products product.Repository, orders *order.Service, imageBaseURL string) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		imageBaseURL: imageBaseURL,
	}
}

// Routes builds the API router. Order placement requires an API key; the
// catalog and the validation preview are public.
func (h *Handler) Routes(authn httpmiddleware.Middleware) http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/product", h.ListProducts)
		r.Get("/product/{productId}", h.GetProduct)
		r.Post("/coupon/validate", h.ValidateCoupons)
		r.With(authn).Post("/order", h.PlaceOrder)
	})

	return r
}
