package transaction

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns transaction routes. Refunds are admin-only.
func (h *Handler) Routes(adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/checkout", h.Checkout)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(adminMiddleware)
		r.Get("/", h.List)
		r.Post("/{id}/refund", h.Refund)
	})

	return r
}

// WebhookRoutes returns the payment gateway callback routes. These are
// mounted separately so they can carry gateway auth instead of user auth.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payments", h.PaymentWebhook)
	return r
}
