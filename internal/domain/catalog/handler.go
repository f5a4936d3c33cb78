package catalog

import (
	"database/sql"
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

// Handler handles catalog HTTP requests.
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type CreateItemRequest struct {
	Type              string  `json:"type" validate:"required,oneof=membership product course event"`
	Name              string  `json:"name" validate:"required,min=3,max=200"`
	Price             int64   `json:"price" validate:"gte=0"`
	CommissionEnabled bool    `json:"commission_enabled"`
	CommissionType    string  `json:"commission_type" validate:"required,commissiontype"`
	CommissionRate    float64 `json:"commission_rate" validate:"gte=0"`
	LegacyExternalID  *int64  `json:"legacy_external_id"`
}

// Create handles POST /catalog (admin)
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if req.CommissionType == string(CommissionPercentage) && req.CommissionRate > 100 {
		response.BadRequest(w, "percentage commission rate must be between 0 and 100")
		return
	}

	item := &SellableItem{
		Type:              ItemType(req.Type),
		Name:              req.Name,
		Price:             req.Price,
		CommissionEnabled: req.CommissionEnabled,
		CommissionType:    CommissionType(req.CommissionType),
		CommissionRate:    req.CommissionRate,
	}
	if req.LegacyExternalID != nil {
		item.LegacyExternalID = sql.NullInt64{Int64: *req.LegacyExternalID, Valid: true}
	}

	if err := h.repo.Create(r.Context(), item); err != nil {
		log.Error().Err(err).Msg("create sellable item failed")
		response.InternalError(w)
		return
	}
	response.Created(w, item)
}

type UpdateItemRequest struct {
	Name              string  `json:"name" validate:"required,min=3,max=200"`
	Price             int64   `json:"price" validate:"gte=0"`
	CommissionEnabled bool    `json:"commission_enabled"`
	CommissionType    string  `json:"commission_type" validate:"required,commissiontype"`
	CommissionRate    float64 `json:"commission_rate" validate:"gte=0"`
}

// Update handles PUT /catalog/{id} (admin)
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid item id")
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if req.CommissionType == string(CommissionPercentage) && req.CommissionRate > 100 {
		response.BadRequest(w, "percentage commission rate must be between 0 and 100")
		return
	}

	item := &SellableItem{
		ID:                id,
		Name:              req.Name,
		Price:             req.Price,
		CommissionEnabled: req.CommissionEnabled,
		CommissionType:    CommissionType(req.CommissionType),
		CommissionRate:    req.CommissionRate,
	}
	if err := h.repo.Update(r.Context(), item); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			response.NotFound(w, "item not found")
			return
		}
		log.Error().Err(err).Str("item_id", id.String()).Msg("update sellable item failed")
		response.InternalError(w)
		return
	}
	response.OK(w, item)
}

// Get handles GET /catalog/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid item id")
		return
	}
	item, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			response.NotFound(w, "item not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, item)
}

// List handles GET /catalog
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, items)
}
