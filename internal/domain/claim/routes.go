package claim

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the user facing claim routes.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Submit)
	r.Get("/", h.ListMine)
	return r
}

// AdminRoutes returns the review queue and sweep trigger.
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware, adminOnly)
	r.Get("/pending", h.ListPending)
	r.Post("/sweep", h.Sweep)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	return r
}
