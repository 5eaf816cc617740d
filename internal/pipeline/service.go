// Package pipeline runs the taxonomy transform end to end: load sources,
// flatten, check limits, write the export and record the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/starford/taxport/internal/apperr"
	"github.com/starford/taxport/internal/checksum"
	"github.com/starford/taxport/internal/export"
	"github.com/starford/taxport/internal/flatten"
	"github.com/starford/taxport/internal/models"
	"github.com/starford/taxport/internal/parser"
	"github.com/starford/taxport/internal/runlog"
	"github.com/starford/taxport/internal/status"
	"github.com/starford/taxport/internal/storage"
)

// SourceExtensions are the file extensions read from the subcategories dir.
var SourceExtensions = []string{".yaml"}

// Paths locates sources (relative to the source store) and artifacts
// (relative to the output store).
type Paths struct {
	CategoriesFile   string
	SubcategoriesDir string
	ExportFile       string
	StatusFile       string
}

// Outcome is the result of one successful run.
type Outcome struct {
	RunID    int64
	Document *export.Document
	Warnings []models.Warning
	Report   *status.Report
}

// Listener is notified after every run. err is nil on success.
type Listener func(report *status.Report, err error)

// Service coordinates sources, artifacts and the run log.
type Service struct {
	sources storage.Provider
	outputs storage.Provider
	runs    runlog.RunLog
	logger  *slog.Logger
	paths   Paths
	limits  flatten.Limits
	now     func() time.Time

	runMu sync.Mutex // serialises runs

	mu        sync.RWMutex
	latest    *Outcome
	listeners []Listener
}

// Option configures a Service.
type Option func(*Service)

// WithRunLog records every run in rl.
func WithRunLog(rl runlog.RunLog) Option {
	return func(s *Service) { s.runs = rl }
}

// WithLimits overrides the vendor limits.
func WithLimits(l flatten.Limits) Option {
	return func(s *Service) { s.limits = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a pipeline service.
func NewService(sources, outputs storage.Provider, paths Paths, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		sources: sources,
		outputs: outputs,
		paths:   paths,
		logger:  logger,
		limits:  flatten.VendorLimits,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l to be called after each run.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Latest returns the outcome of the last successful run, or nil.
func (s *Service) Latest() *Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Status reads the status artifact of the last run.
func (s *Service) Status() (*status.Report, error) {
	return status.Read(s.outputs, s.paths.StatusFile)
}

// Runs exposes the run log, which may be nil.
func (s *Service) Runs() runlog.RunLog {
	return s.runs
}

// Sources lists the categories file followed by every subcategory file.
func (s *Service) Sources() ([]models.SourceMeta, error) {
	core, err := s.sources.Read(s.paths.CategoriesFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrSourceRead, err)
	}
	subs, err := s.sources.List(s.paths.SubcategoriesDir, SourceExtensions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrSourceRead, err)
	}
	out := make([]models.SourceMeta, 0, len(subs)+1)
	out = append(out, models.SourceMeta{Path: path.Clean(s.paths.CategoriesFile), Checksum: checksum.Sum(core)})
	return append(out, subs...), nil
}

// Run performs one transform. A missing or unparsable source aborts the run
// with an error wrapping apperr.ErrSourceRead; limit breaches only produce
// warnings. The status artifact is written in both cases.
func (s *Service) Run(ctx context.Context) (*Outcome, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := s.now()
	out, fingerprint, err := s.transform(ctx)
	if err != nil {
		s.logger.Error("transform failed", slog.String("error", err.Error()))
		report := &status.Report{
			Status:            status.Error,
			Timestamp:         s.now().UTC(),
			SourceFingerprint: fingerprint,
			Error:             err.Error(),
		}
		s.finish(started, report, nil)
		s.notify(report, err)
		return nil, err
	}

	s.finish(started, out.Report, out)
	s.mu.Lock()
	s.latest = out
	s.mu.Unlock()
	s.notify(out.Report, nil)
	return out, nil
}

func (s *Service) transform(ctx context.Context) (*Outcome, string, error) {
	categories, trees, sources, err := s.load(ctx)
	if err != nil {
		return nil, "", err
	}
	fingerprint := checksum.Fingerprint(sources)

	result := flatten.Flatten(categories, trees)
	warnings := flatten.Validate(result, s.limits)
	for _, w := range warnings {
		s.logger.Warn("vendor limit exceeded",
			slog.String("code", w.Code),
			slog.Int("limit", w.Limit),
			slog.Int("actual", w.Actual),
			slog.String("scheme", w.SchemeID),
			slog.String("message", w.Message))
	}

	doc := export.Build(result, s.now())
	data, err := export.Marshal(doc)
	if err != nil {
		return nil, fingerprint, err
	}
	if err := export.ValidateSchema(data); err != nil {
		return nil, fingerprint, err
	}
	if err := s.outputs.Write(s.paths.ExportFile, data); err != nil {
		return nil, fingerprint, fmt.Errorf("write export: %w", err)
	}

	s.logger.Info("taxonomy transformed",
		slog.String("export_file", s.paths.ExportFile),
		slog.Int("total_concepts", result.Stats.TotalConcepts),
		slog.Int("concept_schemes", len(result.Schemes)),
		slog.Int("max_depth", result.Stats.MaxDepth),
		slog.Int("warnings", len(warnings)))

	if warnings == nil {
		warnings = []models.Warning{}
	}
	report := &status.Report{
		Status:            status.Success,
		Timestamp:         s.now().UTC(),
		ExportFile:        s.paths.ExportFile,
		SourceFingerprint: fingerprint,
		Summary: status.Summary{
			TotalConcepts:  result.Stats.TotalConcepts,
			ConceptSchemes: len(result.Schemes),
			MaxDepth:       result.Stats.MaxDepth,
			Warnings:       len(warnings),
		},
		Warnings: warnings,
	}
	return &Outcome{Document: doc, Warnings: warnings, Report: report}, fingerprint, nil
}

// load reads the categories file and every subcategory file in path order.
func (s *Service) load(ctx context.Context) ([]models.Category, []models.Tree, []models.SourceMeta, error) {
	core, err := s.sources.Read(s.paths.CategoriesFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", apperr.ErrSourceRead, err)
	}
	categories, err := parser.ParseCategories(core)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %s: %w", apperr.ErrSourceRead, s.paths.CategoriesFile, err)
	}

	metas, err := s.sources.List(s.paths.SubcategoriesDir, SourceExtensions...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", apperr.ErrSourceRead, err)
	}

	sources := make([]models.SourceMeta, 0, len(metas)+1)
	sources = append(sources, models.SourceMeta{Path: path.Clean(s.paths.CategoriesFile), Checksum: checksum.Sum(core)})

	trees := make([]models.Tree, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		data, err := s.sources.Read(m.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", apperr.ErrSourceRead, err)
		}
		tree, err := parser.ParseTree(data, m.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %s: %w", apperr.ErrSourceRead, m.Path, err)
		}
		s.logger.Debug("loaded subcategory file",
			slog.String("path", m.Path),
			slog.String("parent", tree.Parent),
			slog.Int("top_level", len(tree.Subcategories)))
		trees = append(trees, tree)
		sources = append(sources, models.SourceMeta{Path: m.Path, Checksum: checksum.Sum(data), UpdatedAt: m.UpdatedAt})
	}
	return categories, trees, sources, nil
}

// finish writes the status artifact and records the run. Failures here are
// logged and do not change the run outcome.
func (s *Service) finish(started time.Time, report *status.Report, out *Outcome) {
	if err := status.Write(s.outputs, s.paths.StatusFile, report); err != nil {
		s.logger.Error("write status failed", slog.String("error", err.Error()))
	}
	if s.runs == nil {
		return
	}
	id, err := s.runs.RecordRun(runlog.Run{
		StartedAt:      started,
		FinishedAt:     s.now(),
		Status:         report.Status,
		Fingerprint:    report.SourceFingerprint,
		TotalConcepts:  report.Summary.TotalConcepts,
		ConceptSchemes: report.Summary.ConceptSchemes,
		MaxDepth:       report.Summary.MaxDepth,
		Error:          report.Error,
		Warnings:       report.Warnings,
	})
	if err != nil {
		s.logger.Error("record run failed", slog.String("error", err.Error()))
		return
	}
	if out == nil {
		return
	}
	out.RunID = id
	if err := s.runs.ReplaceConcepts(out.Document.Taxonomy.Concepts); err != nil {
		s.logger.Error("store concepts failed", slog.String("error", err.Error()))
	}
}

func (s *Service) notify(report *status.Report, err error) {
	s.mu.RLock()
	ls := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range ls {
		l(report, err)
	}
}

// IsSourceError reports whether err aborted a run because of its input.
func IsSourceError(err error) bool {
	return errors.Is(err, apperr.ErrSourceRead)
}
