package wallet

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns wallet routes. Pending approval is admin-only.
func (h *Handler) Routes(adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/{userID}", h.Get)
	r.Get("/{userID}/ledger", h.ListLedger)
	r.Post("/{userID}/payouts", h.RequestPayout)

	r.Group(func(r chi.Router) {
		r.Use(adminMiddleware)
		r.Post("/{userID}/pending/release", h.ReleasePending)
		r.Post("/{userID}/pending/reject", h.RejectPending)
	})

	return r
}
