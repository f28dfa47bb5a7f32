package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mwork/rewards-api/internal/middleware"
	"github.com/mwork/rewards-api/internal/pkg/errorhandler"
	"github.com/mwork/rewards-api/internal/pkg/response"
	"github.com/mwork/rewards-api/internal/pkg/validator"
)

type Handler struct {
	ledger *Ledger
	policy PercentPolicy
}

func NewHandler(ledger *Ledger, policy PercentPolicy) *Handler {
	return &Handler{ledger: ledger, policy: policy}
}

// Balance handles GET /wallet/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}
	h.writeBalance(w, r, userID)
}

// Transactions handles GET /wallet/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := pageParams(r)
	txns, err := h.ledger.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.WithMeta(w, txns, response.Meta{
		Limit:   limit,
		Offset:  offset,
		Count:   len(txns),
		HasNext: len(txns) == limit,
	})
}

// Spend handles POST /wallet/spend. The spend limit is checked against the
// locked wallet inside the debit.
func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req SpendRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		errorhandler.LogValidationError(r.Context(), w, errs)
		return
	}

	var meta Metadata
	if req.Description != "" {
		meta = Metadata{MetaDescription: req.Description}
	}

	txn, err := h.ledger.DebitAuthorized(r.Context(), h.policy, userID, req.Amount, SourceSpend, req.ReferenceID, meta)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeTransaction(w, r, userID, txn)
}

// AdminGet handles GET /admin/wallets/{userID}
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	h.writeBalance(w, r, chi.URLParam(r, "userID"))
}

// AdminAudit handles GET /admin/wallets/{userID}/audit
func (h *Handler) AdminAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.Audit(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, report)
}

// AdminAdjust handles POST /admin/wallets/{userID}/adjust
func (h *Handler) AdminAdjust(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		errorhandler.LogValidationError(r.Context(), w, errs)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	txn, err := h.ledger.AdminAdjust(r.Context(), userID, req.Amount, Direction(req.Direction), req.Reason, adminID, req.ReferenceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeTransaction(w, r, userID, txn)
}

// AdminSetStatus handles POST /admin/wallets/{userID}/status
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req StatusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		errorhandler.LogValidationError(r.Context(), w, errs)
		return
	}

	wallet, err := h.ledger.SetStatus(r.Context(), userID, Status(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, NewBalanceResponse(wallet, h.policy))
}

func (h *Handler) writeBalance(w http.ResponseWriter, r *http.Request, userID string) {
	wallet, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, NewBalanceResponse(wallet, h.policy))
}

func (h *Handler) writeTransaction(w http.ResponseWriter, r *http.Request, userID string, txn *Transaction) {
	wallet, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, TransactionResponse{Transaction: txn, Balance: NewBalanceResponse(wallet, h.policy)})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrInvalidUser),
		errors.Is(err, ErrInvalidSource),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidDirection):
		errorhandler.HandleError(ctx, w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), err)
	case errors.Is(err, ErrInsufficientFunds):
		errorhandler.HandleError(ctx, w, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient wallet balance", err)
	case errors.Is(err, ErrSpendLimitExceeded):
		errorhandler.HandleError(ctx, w, http.StatusUnprocessableEntity, "SPEND_LIMIT_EXCEEDED", "Spend limit exceeded", err)
	case errors.Is(err, ErrWalletFrozen):
		errorhandler.HandleError(ctx, w, http.StatusConflict, "WALLET_FROZEN", "Wallet is frozen", err)
	case errors.Is(err, ErrReferenceConflict):
		errorhandler.HandleError(ctx, w, http.StatusConflict, "REFERENCE_CONFLICT", "Reference id already used", err)
	case errors.Is(err, ErrTransactionNotFound):
		errorhandler.HandleError(ctx, w, http.StatusNotFound, "NOT_FOUND", "Transaction not found", err)
	default:
		errorhandler.HandleInternal(ctx, w, err)
	}
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
