package claim

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/middleware"
	"github.com/mwork/rewards-api/internal/pkg/errorhandler"
	"github.com/mwork/rewards-api/internal/pkg/response"
	"github.com/mwork/rewards-api/internal/pkg/validator"
)

// SweepFunc runs one maturity sweep and reports how many claims matured.
type SweepFunc func(ctx context.Context) int

type Handler struct {
	engine *Engine
	sweep  SweepFunc
}

func NewHandler(engine *Engine, sweep SweepFunc) *Handler {
	return &Handler{engine: engine, sweep: sweep}
}

// Submit handles POST /claims
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req SubmitRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		errorhandler.LogValidationError(r.Context(), w, errs)
		return
	}

	amount, err := decimal.NewFromString(req.OrderAmount)
	if err != nil {
		errorhandler.LogValidationError(r.Context(), w, map[string]string{"order_amount": "Must be a positive decimal number"})
		return
	}

	c, err := h.engine.Submit(r.Context(), userID, req.OrderID, amount, req.Category, req.EvidenceRef)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, c)
}

// ListMine handles GET /claims
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	claims, err := h.engine.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, claims)
}

// ListPending handles GET /admin/claims/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	claims, err := h.engine.ListPending(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WithMeta(w, claims, response.Meta{
		Limit:   limit,
		Offset:  offset,
		Count:   len(claims),
		HasNext: len(claims) == limit,
	})
}

// Approve handles POST /admin/claims/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.engine.Approve)
}

// Reject handles POST /admin/claims/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.engine.Reject)
}

// Sweep handles POST /admin/claims/sweep
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	response.OK(w, SweepResponse{Matured: h.sweep(r.Context())})
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, reviewerID, note string) (*Claim, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid claim id")
		return
	}

	// The body is optional; an empty one means no note.
	var req ReviewRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		errorhandler.LogValidationError(r.Context(), w, errs)
		return
	}

	c, err := fn(r.Context(), id, middleware.GetUserID(r.Context()), req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, c)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case IsValidation(err):
		errorhandler.HandleError(ctx, w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), err)
	case errors.Is(err, ErrDuplicateOrder):
		errorhandler.HandleError(ctx, w, http.StatusConflict, "DUPLICATE_ORDER", "Order already submitted", err)
	case errors.Is(err, ErrInvalidState):
		errorhandler.HandleError(ctx, w, http.StatusConflict, "INVALID_STATE", err.Error(), err)
	case errors.Is(err, wallet.ErrWalletFrozen):
		errorhandler.HandleError(ctx, w, http.StatusConflict, "WALLET_FROZEN", "Wallet is frozen", err)
	case errors.Is(err, ErrClaimNotFound):
		errorhandler.HandleError(ctx, w, http.StatusNotFound, "NOT_FOUND", "Claim not found", err)
	default:
		errorhandler.HandleInternal(ctx, w, err)
	}
}
