// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/taxport/internal/api"
	"github.com/starford/taxport/internal/mcpserver"
	"github.com/starford/taxport/internal/pipeline"
	"github.com/starford/taxport/internal/runlog"
	"github.com/starford/taxport/internal/sse"
	"github.com/starford/taxport/internal/status"
	"github.com/starford/taxport/internal/storage"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	db     *runlog.DB
	svc    *pipeline.Service
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

func setup(opts ...Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.logOutput, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source_dir", cfg.Source.Dir),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	sources, err := storage.NewFS(cfg.Source.Dir)
	if err != nil {
		return nil, fmt.Errorf("init source storage: %w", err)
	}

	// Ensure output directory exists.
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	outputs, err := storage.NewFS(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("init output storage: %w", err)
	}

	db, err := runlog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init run log: %w", err)
	}
	if last, err := db.LastRun(); err == nil {
		logger.Info("Previous run",
			slog.Int64("run_id", last.ID),
			slog.String("status", last.Status),
			slog.Time("finished_at", last.FinishedAt),
			slog.Int("total_concepts", last.TotalConcepts))
	}

	svc := pipeline.NewService(sources, outputs, pipeline.Paths{
		CategoriesFile:   cfg.Source.CategoriesFile,
		SubcategoriesDir: cfg.Source.SubcategoriesDir,
		ExportFile:       cfg.Output.ExportFile,
		StatusFile:       cfg.Output.StatusFile,
	}, logger, pipeline.WithRunLog(db))

	return &runtime{cfg: cfg, logger: logger, db: db, svc: svc}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// RunTransform performs a single transform. Limit warnings are logged and
// do not fail the command; a source error does.
func RunTransform(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := rt.svc.Run(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("Transform finished",
		slog.String("export_file", out.Report.ExportFile),
		slog.Int("total_concepts", out.Report.Summary.TotalConcepts),
		slog.Int("concept_schemes", out.Report.Summary.ConceptSchemes),
		slog.Int("max_depth", out.Report.Summary.MaxDepth),
		slog.Int("warnings", out.Report.Summary.Warnings))
	return nil
}

// RunWatch performs an initial transform and then regenerates the export
// whenever a source file changes, until ctx is cancelled or a signal arrives.
func RunWatch(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := rt.svc.Run(ctx); err != nil {
		rt.logger.Warn("initial transform failed", slog.String("error", err.Error()))
	}
	return rt.svc.Watch(ctx, pipeline.DefaultDebounce)
}

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	rt, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer rt.Close()

	return mcpserver.New(rt.svc).ServeStdio()
}

// RunServe starts the HTTP service together with the source watcher.
func RunServe(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	logger := rt.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: newHandler(cfg, rt.svc, broker),
	}

	// Initial run so /api/taxonomy has something to serve.
	if _, err := rt.svc.Run(ctx); err != nil {
		logger.Warn("initial transform failed", slog.String("error", err.Error()))
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start source watcher. The API keeps serving if it cannot start.
	g.Go(func() error {
		watchSources(gCtx, rt.svc, logger)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher as well.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// watchSources runs the source watcher until ctx is done. A watcher that
// fails, e.g. because the subcategories dir does not exist yet, is logged.
func watchSources(ctx context.Context, svc *pipeline.Service, logger *slog.Logger) {
	if err := svc.Watch(ctx, pipeline.DefaultDebounce); err != nil {
		logger.Error("source watcher stopped", slog.String("error", err.Error()))
	}
}

// newHandler builds the root router: health probes, the API under /api
// and the SSE stream fed by pipeline runs.
func newHandler(cfg *Config, svc *pipeline.Service, broker *sse.Broker) http.Handler {
	var ready atomic.Bool
	if svc.Latest() != nil {
		ready.Store(true)
	}
	svc.Subscribe(func(rep *status.Report, err error) {
		ready.Store(true)
		ev := sse.RunEvent{Status: rep.Status, TotalConcepts: rep.Summary.TotalConcepts, Warnings: rep.Summary.Warnings}
		if err != nil {
			ev.Error = err.Error()
		}
		broker.PublishRunEvent(ev)
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"starting"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; /api/events is served by the broker.
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	return r
}
