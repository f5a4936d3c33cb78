package affiliate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/middleware"
	"github.com/eksporyuk/affiliate-api/internal/pkg/response"
	"github.com/eksporyuk/affiliate-api/internal/pkg/validator"
)

// Handler handles affiliate HTTP requests.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type ApplyRequest struct {
	UserID       string `json:"user_id" validate:"required,uuid4"`
	ReferralCode string `json:"referral_code" validate:"required,min=3,max=64,referralcode"`
}

// Apply handles POST /affiliates/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(w, "invalid user_id")
		return
	}

	ident, err := h.service.Apply(r.Context(), userID, req.ReferralCode)
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeTaken):
			response.Conflict(w, "referral code already taken")
		case errors.Is(err, ErrAlreadyRegistered):
			response.Conflict(w, "user already has an affiliate identity")
		default:
			log.Error().Err(err).Msg("affiliate apply failed")
			response.InternalError(w)
		}
		return
	}
	response.Created(w, ident)
}

// ResolveToken handles GET /affiliates/resolve?token=...
// Unknown or unapproved tokens return data: null, not an error.
func (h *Handler) ResolveToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.BadRequest(w, "token is required")
		return
	}
	ident, err := h.service.ResolveToken(r.Context(), token)
	if err != nil {
		log.Error().Err(err).Str("token", token).Msg("affiliate resolve failed")
		response.InternalError(w)
		return
	}
	response.OK(w, ident)
}

// Me handles GET /affiliates/me — the caller's own identity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}
	ident, err := h.service.GetByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "no affiliate identity for this user")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, ident)
}

// Get handles GET /affiliates/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid affiliate id")
		return
	}
	ident, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "affiliate not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, ident)
}

type LegacyMapRequest struct {
	LegacyUserID int64  `json:"legacy_user_id" validate:"required,gt=0"`
	UserID       string `json:"user_id" validate:"required,uuid4"`
}

// MapLegacyUser handles POST /affiliates/legacy-map (admin)
func (h *Handler) MapLegacyUser(w http.ResponseWriter, r *http.Request) {
	var req LegacyMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(w, "invalid user_id")
		return
	}
	if err := h.service.MapLegacyUser(r.Context(), req.LegacyUserID, userID); err != nil {
		log.Error().Err(err).Int64("legacy_user_id", req.LegacyUserID).Msg("legacy map failed")
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

// Approve handles POST /affiliates/{id}/approve (admin)
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve)
}

// Reject handles POST /affiliates/{id}/reject (admin)
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject)
}

// Retire handles POST /affiliates/{id}/retire (admin)
func (h *Handler) Retire(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid affiliate id")
		return
	}
	if err := h.service.Retire(r.Context(), id); err != nil {
		log.Error().Err(err).Str("affiliate_id", id.String()).Msg("affiliate retire failed")
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid affiliate id")
		return
	}
	if err := fn(r.Context(), id); err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			response.Conflict(w, "application already decided")
			return
		}
		log.Error().Err(err).Str("affiliate_id", id.String()).Msg("affiliate decision failed")
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}
