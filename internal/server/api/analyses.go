// Package api provides HTTP API handlers for courtside analyses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/app"
	"github.com/ayusman/courtside/internal/live"
	"github.com/ayusman/courtside/internal/store"
	"github.com/ayusman/courtside/internal/timeline"
)

// Timeline sources reported by the detail endpoint.
const (
	SourceRun   = "run"
	SourceCache = "cache"
	SourceStore = "store"
)

// Analyzer runs an analysis of a video file.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*app.Report, error)
}

// AnalysisHandler handles HTTP requests for analysis resources.
type AnalysisHandler struct {
	store    *store.Store
	cache    *live.TimelineCache
	analyzer Analyzer
	logger   zerolog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler. cache and analyzer may be
// nil; without an analyzer POST is unavailable.
func NewAnalysisHandler(s *store.Store, cache *live.TimelineCache, analyzer Analyzer, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{store: s, cache: cache, analyzer: analyzer, logger: logger}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/analyses or /api/analyses/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/analyses")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createAnalysisRequest struct {
	VideoPath string `json:"video_path"`
}

type analysisResponse struct {
	ID         string  `json:"id"`
	VideoPath  string  `json:"video_path"`
	Status     string  `json:"status"`
	MainAction string  `json:"main_action"`
	Confidence float64 `json:"confidence"`
	Duration   float64 `json:"duration"`
	Frames     int     `json:"frames"`
	FPS        float64 `json:"fps"`
	Error      string  `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type detailResponse struct {
	analysisResponse
	Timeline []timeline.Segment `json:"timeline"`
	Summary  *timeline.Summary  `json:"summary,omitempty"`
	Source   string             `json:"source"`
}

type listAnalysesResponse struct {
	Analyses []analysisResponse `json:"analyses"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(a *store.Analysis) analysisResponse {
	return analysisResponse{
		ID:         a.ID,
		VideoPath:  a.VideoPath,
		Status:     string(a.Status),
		MainAction: a.MainAction,
		Confidence: a.Confidence,
		Duration:   a.Duration,
		Frames:     a.Frames,
		FPS:        a.FPS,
		Error:      a.Error,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  a.UpdatedAt.Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/analyses and returns every analysis, newest first.
func (h *AnalysisHandler) list(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.store.Analyses().List()
	if err != nil {
		h.logger.Error().Err(err).Msg("list analyses")
		writeError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}

	response := listAnalysesResponse{
		Analyses: make([]analysisResponse, 0, len(analyses)),
	}
	for _, a := range analyses {
		response.Analyses = append(response.Analyses, toResponse(a))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/analyses/{id}. The timeline is read from the cache
// when present, otherwise from the store, refilling the cache.
func (h *AnalysisHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.store.Analyses().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get analysis")
		return
	}

	resp := detailResponse{analysisResponse: toResponse(a)}

	if h.cache != nil {
		cached, err := h.cache.Get(r.Context(), id)
		switch {
		case err == nil:
			resp.Timeline = cached.Segments
			resp.Summary = &cached.Summary
			resp.Source = SourceCache
			writeJSON(w, http.StatusOK, resp)
			return
		case !errors.Is(err, live.ErrCacheMiss):
			h.logger.Warn().Err(err).Str("analysis", id).Msg("timeline cache read failed")
		}
	}

	segs, err := h.store.Segments().GetByAnalysisID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get timeline")
		return
	}
	resp.Timeline = segs
	resp.Source = SourceStore
	summary := storedSummary(a, segs)
	resp.Summary = &summary

	if h.cache != nil && a.Status != store.StatusRunning && a.Status != store.StatusFailed {
		err := h.cache.Put(r.Context(), live.CachedTimeline{AnalysisID: id, Segments: segs, Summary: summary})
		if err != nil {
			h.logger.Warn().Err(err).Str("analysis", id).Msg("timeline cache fill failed")
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// storedSummary rebuilds the summary fields the store keeps.
func storedSummary(a *store.Analysis, segs []timeline.Segment) timeline.Summary {
	return timeline.Summary{
		MainAction: action.Label(a.MainAction),
		Confidence: a.Confidence,
		Duration:   a.Duration,
		Segments:   len(segs),
	}
}

// create handles POST /api/analyses. The analysis runs within the request;
// a client that disconnects leaves a partial result behind.
func (h *AnalysisHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis is not available")
		return
	}

	var req createAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.VideoPath == "" {
		writeError(w, http.StatusBadRequest, "video_path is required")
		return
	}

	report, err := h.analyzer.Analyze(r.Context(), req.VideoPath)
	if report == nil {
		h.logger.Error().Err(err).Str("video", req.VideoPath).Msg("analysis not recorded")
		writeError(w, http.StatusInternalServerError, "Failed to run analysis")
		return
	}

	resp := detailResponse{
		analysisResponse: toResponse(report.Analysis),
		Timeline:         []timeline.Segment{},
		Source:           SourceRun,
	}
	if res := report.Result; res != nil {
		if res.Timeline != nil {
			resp.Timeline = res.Timeline
		}
		resp.Summary = &res.Summary
	}

	status := http.StatusCreated
	if report.Analysis.Status == store.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// delete handles DELETE /api/analyses/{id}.
func (h *AnalysisHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Analyses().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete analysis")
		return
	}

	if h.cache != nil {
		if err := h.cache.Delete(r.Context(), id); err != nil {
			h.logger.Warn().Err(err).Str("analysis", id).Msg("timeline cache delete failed")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
