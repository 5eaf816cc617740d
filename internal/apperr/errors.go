// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	// ErrSourceRead is returned when a source file is missing or cannot be
	// parsed as taxonomy data. It aborts the run.
	ErrSourceRead = errors.New("source read error")
	ErrNotFound   = errors.New("not found")
	ErrNoExport   = errors.New("no export available")
)
