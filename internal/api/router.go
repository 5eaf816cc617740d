package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taxport/internal/pipeline"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *pipeline.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/taxonomy", h.GetTaxonomy)
	r.Get("/status", h.GetStatus)
	r.Get("/sources", h.ListSources)

	r.Get("/runs", h.ListRuns)
	r.Post("/runs", h.TriggerRun)

	r.Get("/concepts", h.SearchConcepts)
	r.Get("/concepts/{id}", h.GetConcept)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
