package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "fundrank/internal/errors"
)

// ErrRunInProgress is returned by RunService.Start while a previous
// run is still executing.
var ErrRunInProgress = errors.New("a run is already in progress")

// RunsHandler triggers pipeline runs and reports their progress.
type RunsHandler struct {
	service RunService
	logger  *slog.Logger
}

// NewRunsHandler creates the runs handler.
func NewRunsHandler(service RunService, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{
		service: service,
		logger:  logger.With(slog.String("component", "runs_handler")),
	}
}

// Routes returns the run management routes.
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.StartRun)
	r.Get("/latest", h.GetLatest)

	return r
}

// StartRun handles POST /api/v1/runs. The run executes in the
// background; clients poll /latest for progress.
func (h *RunsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	runID, err := h.service.Start(r.Context())
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.New(http.StatusConflict, "RUN_IN_PROGRESS", "A run is already in progress")))
			return
		}
		h.logger.Error("start run failed", "error", err)
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrInternalServer))
		return
	}

	h.logger.Info("run started", "run_id", runID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"run_id":  runID,
	})
}

// GetLatest handles GET /api/v1/runs/latest.
func (h *RunsHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	status, ok := h.service.Status()
	if !ok {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrRunNotFound))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"data":    status,
	})
}
