package commission

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/pkg/response"
)

// Handler exposes the read side of the commission ledger plus the
// paid-out flip. Writes go through the Writer only.
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /commissions?affiliate_id=...&limit=...&offset=... (admin)
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	affiliateID, err := uuid.Parse(r.URL.Query().Get("affiliate_id"))
	if err != nil {
		response.BadRequest(w, "affiliate_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.repo.ListByAffiliate(r.Context(), affiliateID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, entries)
}

// Summary handles GET /commissions/summary?affiliate_id=... (admin)
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	affiliateID, err := uuid.Parse(r.URL.Query().Get("affiliate_id"))
	if err != nil {
		response.BadRequest(w, "affiliate_id is required")
		return
	}
	total, err := h.repo.SumByAffiliate(r.Context(), affiliateID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{
		"affiliate_id": affiliateID,
		"total":        total,
	})
}

// GetByTransaction handles GET /commissions/transaction/{transactionID} (admin)
func (h *Handler) GetByTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}
	entry, err := h.repo.GetByTransactionID(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			response.NotFound(w, "no commission entry for this transaction")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, entry)
}

// MarkPaidOut handles POST /commissions/{id}/paid (admin). Flipped when
// a payout batch settles the entry.
func (h *Handler) MarkPaidOut(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid entry id")
		return
	}
	if err := h.repo.MarkPaidOut(r.Context(), id); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			response.NotFound(w, "commission entry not found")
			return
		}
		log.Error().Err(err).Str("entry_id", id.String()).Msg("mark paid out failed")
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

// Routes returns commission ledger routes. All admin.
func (h *Handler) Routes(adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(adminMiddleware)

	r.Get("/", h.List)
	r.Get("/summary", h.Summary)
	r.Get("/transaction/{transactionID}", h.GetByTransaction)
	r.Post("/{id}/paid", h.MarkPaidOut)

	return r
}
