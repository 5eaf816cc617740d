package api

import (
	"github.com/starford/taxport/internal/models"
	"github.com/starford/taxport/internal/runlog"
	"github.com/starford/taxport/internal/status"
)

// RunItem is one run in a history listing (aliased from the run log).
type RunItem = runlog.Run

// ConceptItem is a stored concept (aliased from the run log).
type ConceptItem = runlog.ConceptRow

// RunListResponse wraps paginated run history.
type RunListResponse struct {
	Runs  []RunItem `json:"runs"`
	Total int       `json:"total"`
}

// RunResponse is returned after a triggered run.
type RunResponse struct {
	RunID  int64          `json:"runId"`
	Report *status.Report `json:"report"`
}

// ConceptSearchResponse wraps concept search hits.
type ConceptSearchResponse struct {
	Concepts []ConceptItem `json:"concepts"`
}

// SourceListResponse lists the source files of the taxonomy.
type SourceListResponse struct {
	Sources []models.SourceMeta `json:"sources"`
}
