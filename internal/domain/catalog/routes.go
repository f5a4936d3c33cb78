package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns catalog routes. Reads are public, writes require admin.
func (h *Handler) Routes(adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(adminMiddleware)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
	})

	return r
}
