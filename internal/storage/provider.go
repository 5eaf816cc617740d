// Package storage defines the file-system abstraction for taxonomy sources
// and generated artifacts.
package storage

import "github.com/starford/taxport/internal/models"

// Provider is the interface for file operations under a root directory.
type Provider interface {
	// List returns metadata for the files directly under dir (relative to
	// the root) whose extension is one of exts, sorted by path.
	List(dir string, exts ...string) ([]models.SourceMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Root returns the absolute root directory.
	Root() string
}
