// Package http exposes the read-only results API: shortlists, score
// tables, guardrail audits, and feature rows from the latest completed
// ranking run.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "fundrank/internal/errors"
	"fundrank/internal/features"
	"fundrank/internal/fund"
	"fundrank/internal/guardrails"
	"fundrank/internal/operations"
	"fundrank/internal/ranking"
	"fundrank/internal/scoring"
)

// ResultsHandler serves the latest run's result tables.
type ResultsHandler struct {
	store  ResultsStore
	logger *slog.Logger
}

// NewResultsHandler creates the results handler.
func NewResultsHandler(store ResultsStore, logger *slog.Logger) *ResultsHandler {
	return &ResultsHandler{
		store:  store,
		logger: logger.With(slog.String("component", "results_handler")),
	}
}

// Routes returns the results routes.
func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/shortlist", h.GetShortlist)
	r.Get("/scores", h.GetScores)
	r.Get("/guardrails", h.GetGuardrails)
	r.Get("/features", h.GetFeatures)

	return r
}

// resultsEnvelope wraps every successful response with the run it came
// from, so clients can detect staleness across polls.
type resultsEnvelope struct {
	Success bool        `json:"success"`
	RunID   string      `json:"run_id"`
	AsOf    string      `json:"as_of"`
	Count   int         `json:"count"`
	Data    interface{} `json:"data"`
}

func envelope(state *operations.State, count int, data interface{}) resultsEnvelope {
	return resultsEnvelope{
		Success: true,
		RunID:   state.RunID,
		AsOf:    state.AsOf.Format("2006-01-02"),
		Count:   count,
		Data:    data,
	}
}

// GetShortlist handles GET /api/v1/results/shortlist.
func (h *ResultsHandler) GetShortlist(w http.ResponseWriter, r *http.Request) {
	state, ok := h.latest(w, r)
	if !ok {
		return
	}

	profile := r.URL.Query().Get("profile")
	if profile != "" && !h.profileKnown(state, profile) {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ProfileNotFoundError(profile)))
		return
	}

	entries := make([]ranking.ShortlistEntry, 0, len(state.Shortlist))
	for _, e := range state.Shortlist {
		if profile == "" || e.Profile == profile {
			entries = append(entries, e)
		}
	}
	render.JSON(w, r, envelope(state, len(entries), entries))
}

// GetScores handles GET /api/v1/results/scores. Supports filtering by
// profile and by fund CNPJ.
func (h *ResultsHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	state, ok := h.latest(w, r)
	if !ok {
		return
	}

	profile := r.URL.Query().Get("profile")
	if profile != "" && !h.profileKnown(state, profile) {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ProfileNotFoundError(profile)))
		return
	}

	var fundID fund.CNPJ
	if raw := r.URL.Query().Get("cnpj"); raw != "" {
		parsed, err := fund.ParseCNPJ(raw)
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_PARAMETER", "Invalid CNPJ", raw)))
			return
		}
		fundID = parsed
	}

	rows := make([]scoring.ScoreRow, 0, len(state.Scores))
	for _, s := range state.Scores {
		if profile != "" && s.Profile != profile {
			continue
		}
		if fundID != 0 && s.FundID != fundID {
			continue
		}
		rows = append(rows, s)
	}
	render.JSON(w, r, envelope(state, len(rows), rows))
}

// GetGuardrails handles GET /api/v1/results/guardrails. With
// failed=true only funds that tripped a guardrail are returned.
func (h *ResultsHandler) GetGuardrails(w http.ResponseWriter, r *http.Request) {
	state, ok := h.latest(w, r)
	if !ok {
		return
	}

	profile := r.URL.Query().Get("profile")
	failedOnly := r.URL.Query().Get("failed") == "true"

	rows := make([]guardrails.Result, 0, len(state.Audit))
	for _, res := range state.Audit {
		if profile != "" && res.Profile != profile {
			continue
		}
		if failedOnly && res.Passed {
			continue
		}
		rows = append(rows, res)
	}
	render.JSON(w, r, envelope(state, len(rows), rows))
}

// GetFeatures handles GET /api/v1/results/features.
func (h *ResultsHandler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	state, ok := h.latest(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("cnpj"); raw != "" {
		fundID, err := fund.ParseCNPJ(raw)
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_PARAMETER", "Invalid CNPJ", raw)))
			return
		}
		for _, row := range state.Features {
			if row.FundID == fundID {
				render.JSON(w, r, envelope(state, 1, []features.Row{row}))
				return
			}
		}
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrNotFound))
		return
	}

	render.JSON(w, r, envelope(state, len(state.Features), state.Features))
}

// latest fetches the newest completed run, writing RUN_NOT_FOUND when
// no run has finished yet.
func (h *ResultsHandler) latest(w http.ResponseWriter, r *http.Request) (*operations.State, bool) {
	state, ok := h.store.Latest()
	if !ok {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrRunNotFound))
		return nil, false
	}
	return state, true
}

func (h *ResultsHandler) profileKnown(state *operations.State, profile string) bool {
	for _, s := range state.Scores {
		if s.Profile == profile {
			return true
		}
	}
	return false
}
