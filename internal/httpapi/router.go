// Package httpapi exposes the bookstore core over JSON HTTP.
package httpapi

import (
	"net/http"

	"bookstore-core/internal/address"
	"bookstore-core/internal/cart"
	"bookstore-core/internal/checkout"
	"bookstore-core/internal/logger"
	"bookstore-core/internal/metrics"
	"bookstore-core/internal/order"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Resolver  Resolver
	Cart      *cart.Service
	Checkout  *checkout.Orchestrator
	Orders    order.Service
	Addresses address.Service
	Metrics   *metrics.Registry
	Limiter   *RateLimiter
}

type handlers struct {
	Deps
}

func NewRouter(deps Deps) chi.Router {
	h := &handlers{Deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(Authenticate(deps.Resolver))
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/debug/metrics", h.metrics)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Get("/events", h.cartEvents)
		r.Post("/items", h.addCartItem)
		r.Patch("/items/{id}", h.changeCartQuantity)
		r.Delete("/items/{id}", h.removeCartItem)
	})

	r.Route("/wishlist", func(r chi.Router) {
		r.Get("/", h.getWishlist)
		r.Delete("/", h.clearWishlist)
		r.Post("/items", h.addWishlistItem)
		r.Delete("/items/{id}", h.removeWishlistItem)
	})

	r.Get("/checkout/summary", h.checkoutSummary)
	r.Post("/checkout", h.placeOrder)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOwnOrders)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
	})

	r.Route("/addresses", func(r chi.Router) {
		r.Get("/", h.listAddresses)
		r.Post("/", h.createAddress)
		r.Delete("/{id}", h.deleteAddress)
		r.Post("/{id}/default", h.setDefaultAddress)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/orders", h.listAllOrders)
		r.Patch("/orders/{id}/status", h.updateOrderStatus)
	})

	return r
}

func (h *handlers) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Metrics.Snapshot())
}
