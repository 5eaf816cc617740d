// Package testutil provides shared test helpers for source trees, stores
// and run logs.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/taxport/internal/pipeline"
	"github.com/starford/taxport/internal/runlog"
	"github.com/starford/taxport/internal/storage"
)

// CoreCategories is a small valid core categories document.
const CoreCategories = `categories:
  - id: tech
    name: Technology
    description: Computing and engineering
  - id: arts
    name: Arts
`

// TechTree is a subcategory file for the tech scheme, three levels deep.
const TechTree = `parent: tech
subcategories:
  - id: software
    name: Software
    alternativeLabels: [Apps, Programs]
    subcategories:
      - id: databases
        name: Databases
        subcategories:
          - id: sql
            name: SQL
  - id: hardware
    name: Hardware
`

// ArtsTree is a subcategory file for the arts scheme.
const ArtsTree = `parent: arts
subcategories:
  - id: music
    name: Music
    description: Sound as art
`

// DefaultPaths are the source and artifact paths used by test fixtures.
var DefaultPaths = pipeline.Paths{
	CategoriesFile:   "core-categories.yaml",
	SubcategoriesDir: "subcategories",
	ExportFile:       "out/taxonomy-export.json",
	StatusFile:       "out/taxonomy-status.json",
}

// WriteFile writes content to rel under dir, creating parents.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// SourceTree creates a temporary root holding the fixture categories file
// and the tech and arts subcategory files.
func SourceTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	WriteFile(t, dir, DefaultPaths.CategoriesFile, CoreCategories)
	WriteFile(t, dir, DefaultPaths.SubcategoriesDir+"/arts.yaml", ArtsTree)
	WriteFile(t, dir, DefaultPaths.SubcategoriesDir+"/tech.yaml", TechTree)
	return dir
}

// Store returns a storage.FS rooted at dir.
func Store(t *testing.T, dir string) *storage.FS {
	t.Helper()
	s, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// RunLog opens a temporary run log that is closed on cleanup.
func RunLog(t *testing.T) *runlog.DB {
	t.Helper()
	db, err := runlog.Open(filepath.Join(t.TempDir(), "taxport.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Service builds a pipeline over a fresh fixture tree with a run log.
// It returns the service and the root directory.
func Service(t *testing.T, opts ...pipeline.Option) (*pipeline.Service, string) {
	t.Helper()
	dir := SourceTree(t)
	store := Store(t, dir)
	opts = append([]pipeline.Option{pipeline.WithRunLog(RunLog(t))}, opts...)
	return pipeline.NewService(store, store, DefaultPaths, Logger(), opts...), dir
}
