package transaction

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/pkg/response"
	"github.com/eksporyuk/affiliate-api/internal/pkg/validator"
)

// Handler handles transaction HTTP requests.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type CheckoutRequest struct {
	BuyerUserID    string `json:"buyer_user_id" validate:"required,uuid4"`
	SellableItemID string `json:"sellable_item_id" validate:"required,uuid4"`
	Amount         int64  `json:"amount" validate:"gte=0"`
	ReferralToken  string `json:"referral_token" validate:"omitempty,max=64"`
}

// Checkout handles POST /transactions/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	buyerID, err := uuid.Parse(req.BuyerUserID)
	if err != nil {
		response.BadRequest(w, "invalid buyer_user_id")
		return
	}
	itemID, err := uuid.Parse(req.SellableItemID)
	if err != nil {
		response.BadRequest(w, "invalid sellable_item_id")
		return
	}

	t, err := h.service.Checkout(r.Context(), buyerID, itemID, req.Amount, req.ReferralToken)
	if err != nil {
		if errors.Is(err, catalog.ErrItemNotFound) {
			response.NotFound(w, "sellable item not found")
			return
		}
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "amount must be non-negative")
			return
		}
		log.Error().Err(err).Msg("checkout failed")
		response.InternalError(w)
		return
	}
	response.Created(w, t)
}

// Get handles GET /transactions/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "transaction not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, t)
}

type PaymentWebhookRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,uuid4"`
	Status        string `json:"status" validate:"required,txstatus"`
}

// PaymentWebhook handles POST /webhooks/payments. The gateway retries
// on any non-2xx response, so commission infrastructure failures are
// surfaced as 500 rather than swallowed.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req PaymentWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	id, err := uuid.Parse(req.TransactionID)
	if err != nil {
		response.BadRequest(w, "invalid transaction_id")
		return
	}

	t, err := h.service.ConfirmPayment(r.Context(), id, Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "transaction not found")
		case errors.Is(err, ErrInvalidTransition):
			response.Conflict(w, "status transition not allowed")
		default:
			log.Error().Err(err).Str("transaction_id", req.TransactionID).Msg("payment confirmation failed")
			response.InternalError(w)
		}
		return
	}
	response.OK(w, t)
}

// List handles GET /transactions?status=...&limit=...&offset=... (admin)
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	switch status {
	case StatusPending, StatusSuccess, StatusFailed, StatusRefunded:
	default:
		response.BadRequest(w, "status must be one of PENDING, SUCCESS, FAILED, REFUNDED")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := h.service.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, txs)
}

// Refund handles POST /transactions/{id}/refund (admin)
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}
	t, err := h.service.Refund(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			response.Conflict(w, "only successful transactions can be refunded")
			return
		}
		log.Error().Err(err).Str("transaction_id", id.String()).Msg("refund failed")
		response.InternalError(w)
		return
	}
	response.OK(w, t)
}
