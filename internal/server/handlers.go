package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/screener/internal/history"
	"github.com/aristath/screener/internal/jobs"
	"github.com/aristath/screener/internal/screener"
)

// Handlers provides the screen and condition HTTP handlers
type Handlers struct {
	screens  *ScreenService
	registry *screener.Registry
	pipeline *screener.Pipeline
	runs     *history.Store
}

// NewHandlers creates the screen API handlers
func NewHandlers(screens *ScreenService, registry *screener.Registry, pipeline *screener.Pipeline, runs *history.Store) *Handlers {
	return &Handlers{
		screens:  screens,
		registry: registry,
		pipeline: pipeline,
		runs:     runs,
	}
}

// RegisterRoutes registers the screen API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/screens", func(r chi.Router) {
		r.Post("/", h.CreateScreen)
		r.Get("/{jobID}", h.GetScreen)
		r.Post("/{jobID}/cancel", h.CancelScreen)
	})
	r.Get("/api/conditions", h.ListConditions)
	r.Get("/api/strategies", h.ListStrategies)
	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", h.ListRuns)
		r.Get("/{runID}", h.GetRun)
	})
}

// createScreenRequest is the body of POST /api/screens
type createScreenRequest struct {
	Strategy string           `json:"strategy"`
	Params   screener.Context `json:"params"`
}

// CreateScreen submits a new screen job
func (h *Handlers) CreateScreen(w http.ResponseWriter, r *http.Request) {
	var req createScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Strategy == "" {
		writeError(w, http.StatusBadRequest, "strategy is required")
		return
	}
	if req.Params == nil {
		req.Params = screener.Context{}
	}

	jobID, err := h.screens.Create(req.Strategy, req.Params)
	if err != nil {
		switch {
		case errors.Is(err, screener.ErrUnknownStrategy),
			errors.Is(err, screener.ErrConditionNotFound):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// GetScreen returns the status (and result, once completed) of a screen job
func (h *Handlers) GetScreen(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.screens.Status(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// CancelScreen requests cooperative cancellation of a screen job
func (h *Handlers) CancelScreen(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	changed, err := h.screens.Cancel(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := "cancelling"
	if !changed {
		status = "already_terminal"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": status,
	})
}

// ListConditions returns the registered conditions with their schemas
func (h *Handlers) ListConditions(w http.ResponseWriter, r *http.Request) {
	conds := h.registry.All()

	response := make([]map[string]any, 0, len(conds))
	for _, cond := range conds {
		response = append(response, map[string]any{
			"key":    cond.Key,
			"label":  cond.Label,
			"kinds":  cond.Kinds,
			"params": cond.Params,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// ListStrategies returns the registered strategies
func (h *Handlers) ListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Strategies())
}

// ListRuns returns recent screen runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	runs, err := h.runs.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one recorded run including its result
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.runs.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
