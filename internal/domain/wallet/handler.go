package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/pkg/response"
	"github.com/eksporyuk/affiliate-api/internal/pkg/validator"
)

// Handler handles wallet HTTP requests.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get handles GET /wallets/{userID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}
	wallet, err := h.service.Get(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, wallet)
}

// ListLedger handles GET /wallets/{userID}/ledger
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.service.ListLedger(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, entries)
}

type PendingActionRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	ReferenceID string `json:"reference_id" validate:"required"`
	Note        string `json:"note"`
}

// ReleasePending handles POST /wallets/{userID}/pending/release (admin)
func (h *Handler) ReleasePending(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.pendingRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.ReleasePending(r.Context(), userID, req.Amount, req.ReferenceID); err != nil {
		if errors.Is(err, ErrInsufficientPending) {
			response.Conflict(w, "pending balance is lower than the requested amount")
			return
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("pending release failed")
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

// RejectPending handles POST /wallets/{userID}/pending/reject (admin)
func (h *Handler) RejectPending(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.pendingRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.RejectPending(r.Context(), userID, req.Amount, req.ReferenceID, req.Note); err != nil {
		if errors.Is(err, ErrInsufficientPending) {
			response.Conflict(w, "pending balance is lower than the requested amount")
			return
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("pending reject failed")
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

type PayoutRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Method string `json:"method" validate:"required,min=2,max=50"`
}

// RequestPayout handles POST /wallets/{userID}/payouts
func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}
	var req PayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	payout, err := h.service.RequestPayout(r.Context(), userID, req.Amount, req.Method)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			response.Conflict(w, "insufficient balance")
			return
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("payout request failed")
		response.InternalError(w)
		return
	}
	response.Created(w, payout)
}

func (h *Handler) pendingRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, *PendingActionRequest, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return uuid.Nil, nil, false
	}
	var req PendingActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return uuid.Nil, nil, false
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return uuid.Nil, nil, false
	}
	return userID, &req, true
}
