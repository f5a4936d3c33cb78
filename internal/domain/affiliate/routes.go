package affiliate

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns affiliate routes. Applications and token resolution are
// open to the platform frontends; workflow decisions require admin.
func (h *Handler) Routes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/apply", h.Apply)
	r.Get("/resolve", h.ResolveToken)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/me", h.Me)
	})

	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(adminMiddleware)
		r.Post("/legacy-map", h.MapLegacyUser)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
		r.Post("/{id}/retire", h.Retire)
	})

	return r
}
