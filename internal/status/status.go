// Package status writes the run status artifact polled by automation
// consumers.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/taxport/internal/apperr"
	"github.com/starford/taxport/internal/models"
	"github.com/starford/taxport/internal/storage"
)

// Run outcomes.
const (
	Success = "success"
	Error   = "error"
)

// Summary holds the headline counts of a run.
type Summary struct {
	TotalConcepts  int `json:"totalConcepts"`
	ConceptSchemes int `json:"conceptSchemes"`
	MaxDepth       int `json:"maxDepth"`
	Warnings       int `json:"warnings"`
}

// Report is the status artifact.
type Report struct {
	Status            string           `json:"status"`
	Timestamp         time.Time        `json:"timestamp"`
	ExportFile        string           `json:"exportFile,omitempty"`
	SourceFingerprint string           `json:"sourceFingerprint,omitempty"`
	Summary           Summary          `json:"summary"`
	Warnings          []models.Warning `json:"warnings"`
	Error             string           `json:"error,omitempty"`
}

// OK reports whether the run succeeded.
func (r *Report) OK() bool {
	return r.Status == Success
}

// Write stores r at path under the store root.
func Write(store storage.Provider, path string, r *Report) error {
	if r.Warnings == nil {
		r.Warnings = []models.Warning{}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("status: encode: %w", err)
	}
	if err := store.Write(path, append(data, '\n')); err != nil {
		return fmt.Errorf("status: write: %w", err)
	}
	return nil
}

// Read loads the status artifact at path. A missing file yields
// apperr.ErrNotFound.
func Read(store storage.Provider, path string) (*Report, error) {
	data, err := store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("status: decode: %w", err)
	}
	return &r, nil
}
