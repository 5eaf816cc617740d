package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taxport/internal/apperr"
	"github.com/starford/taxport/internal/pipeline"
)

// Handler holds API route handlers.
type Handler struct {
	svc *pipeline.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *pipeline.Service) *Handler {
	return &Handler{svc: svc}
}

// GetTaxonomy handles GET /api/taxonomy: the document of the last
// successful run.
func (h *Handler) GetTaxonomy(w http.ResponseWriter, _ *http.Request) {
	out := h.svc.Latest()
	if out == nil {
		writeJSON(w, http.StatusNotFound, errorBody(apperr.ErrNoExport.Error()))
		return
	}
	writeJSON(w, http.StatusOK, out.Document)
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	rep, err := h.svc.Status()
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no run recorded yet"))
			return
		}
		slog.Error("read status failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ListSources handles GET /api/sources.
func (h *Handler) ListSources(w http.ResponseWriter, _ *http.Request) {
	metas, err := h.svc.Sources()
	if err != nil {
		if pipeline.IsSourceError(err) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			return
		}
		slog.Error("list sources failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SourceListResponse{Sources: metas})
}

// ListRuns handles GET /api/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.svc.Runs()
	if runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("run log disabled"))
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := runs.ListRuns(limit, offset)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []RunItem{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: items, Total: total})
}

// TriggerRun handles POST /api/runs: runs the transform synchronously.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Run(r.Context())
	if err != nil {
		if pipeline.IsSourceError(err) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			return
		}
		slog.Error("run failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, RunResponse{RunID: out.RunID, Report: out.Report})
}

// SearchConcepts handles GET /api/concepts?q=.
func (h *Handler) SearchConcepts(w http.ResponseWriter, r *http.Request) {
	runs := h.svc.Runs()
	if runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("run log disabled"))
		return
	}
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	hits, err := runs.SearchConcepts(q, limit)
	if err != nil {
		slog.Error("search concepts failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if hits == nil {
		hits = []ConceptItem{}
	}
	writeJSON(w, http.StatusOK, ConceptSearchResponse{Concepts: hits})
}

// GetConcept handles GET /api/concepts/{id}.
func (h *Handler) GetConcept(w http.ResponseWriter, r *http.Request) {
	runs := h.svc.Runs()
	if runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("run log disabled"))
		return
	}
	id := chi.URLParam(r, "id")
	c, err := runs.GetConcept(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("get concept failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}
