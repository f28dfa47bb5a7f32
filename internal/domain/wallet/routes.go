package wallet

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the user facing wallet routes.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.Post("/spend", h.Spend)
	return r
}

// AdminRoutes returns wallet management routes keyed by user id.
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware, adminOnly)
	r.Get("/{userID}", h.AdminGet)
	r.Get("/{userID}/audit", h.AdminAudit)
	r.Post("/{userID}/adjust", h.AdminAdjust)
	r.Post("/{userID}/status", h.AdminSetStatus)
	return r
}
