package reconciliation

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

// Handler exposes admin endpoints for reconciliation runs.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// runView decorates a run with the public URL of its archived report.
type runView struct {
	*Run
	ReportURL string `json:"report_url,omitempty"`
}

func (h *Handler) view(run *Run) runView {
	return runView{Run: run, ReportURL: h.service.ReportURL(run)}
}

type StartRunRequest struct {
	SnapshotKey  string `json:"snapshot_key" validate:"omitempty,max=512"`
	SnapshotPath string `json:"snapshot_path" validate:"omitempty,max=512"`
	Mode         string `json:"mode" validate:"required,oneof=report repair"`
}

// StartRun handles POST /reconciliation/runs. Runs are synchronous;
// large snapshots belong on the batch worker instead.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if (req.SnapshotKey == "") == (req.SnapshotPath == "") {
		response.BadRequest(w, "exactly one of snapshot_key or snapshot_path is required")
		return
	}

	var run *Run
	var err error
	if req.SnapshotKey != "" {
		run, err = h.service.RunFromKey(r.Context(), req.SnapshotKey, Mode(req.Mode))
	} else {
		run, err = h.service.RunFromFile(r.Context(), req.SnapshotPath, Mode(req.Mode))
	}
	if err != nil {
		log.Error().Err(err).Msg("reconciliation run failed")
		if run != nil {
			// Partial classification was persisted; return it with the error.
			response.ErrorWithDetails(w, http.StatusInternalServerError, "RUN_FAILED",
				"Run aborted partway", map[string]string{"run_id": run.ID.String()})
			return
		}
		response.InternalError(w)
		return
	}
	response.Created(w, h.view(run))
}

// GetRun handles GET /reconciliation/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid run id")
		return
	}
	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			response.NotFound(w, "run not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, h.view(run))
}

// ListRuns handles GET /reconciliation/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)
	runs, err := h.service.ListRuns(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	views := make([]runView, len(runs))
	for i := range runs {
		views[i] = h.view(&runs[i])
	}
	response.OK(w, views)
}

// ListRows handles GET /reconciliation/runs/{id}/rows
func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid run id")
		return
	}
	limit, offset := pagination(r, 100)
	rows, err := h.service.ListRows(r.Context(), id, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, rows)
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// Routes returns reconciliation routes, all admin-only.
func (h *Handler) Routes(adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(adminMiddleware)

	r.Post("/runs", h.StartRun)
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)
	r.Get("/runs/{id}/rows", h.ListRows)

	return r
}
