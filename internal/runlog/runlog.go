package runlog

import "github.com/starford/taxport/internal/models"

// RunLog is the history and concept lookup used by the pipeline, the HTTP
// API and the MCP server.
type RunLog interface {
	RecordRun(r Run) (int64, error)
	ListRuns(limit, offset int) ([]Run, int, error)
	LastRun() (*Run, error)
	ReplaceConcepts(concepts []models.Concept) error
	GetConcept(id string) (*ConceptRow, error)
	SearchConcepts(query string, limit int) ([]ConceptRow, error)
	Close() error
}

// Verify *DB satisfies RunLog at compile time.
var _ RunLog = (*DB)(nil)
