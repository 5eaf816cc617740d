package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/taxport/internal/sse"
	"github.com/starford/taxport/internal/testutil"
)

func TestHandler_Health(t *testing.T) {
	svc, _ := testutil.Service(t)
	broker := sse.NewBroker(time.Millisecond)
	defer broker.Close()
	h := newHandler(NewDefaultConfig(), svc, broker)

	get := func(path string) int {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	if code := get("/health/live"); code != http.StatusOK {
		t.Errorf("live = %d", code)
	}
	if code := get("/health/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("ready before first run = %d, want 503", code)
	}

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if code := get("/health/ready"); code != http.StatusOK {
		t.Errorf("ready after run = %d", code)
	}
	if code := get("/api/taxonomy"); code != http.StatusOK {
		t.Errorf("taxonomy = %d", code)
	}
}

func TestRunTransform_WritesArtifacts(t *testing.T) {
	src := testutil.SourceTree(t)
	out := t.TempDir()

	cfg := NewDefaultConfig()
	cfg.Source.Dir = src
	cfg.Output.Dir = out
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "taxport.db")

	err := RunTransform(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{cfg.Output.ExportFile, cfg.Output.StatusFile} {
		if _, err := os.Stat(filepath.Join(out, f)); err != nil {
			t.Errorf("%s: %v", f, err)
		}
	}
}

func TestRunTransform_MissingSources(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Dir = t.TempDir()
	cfg.Output.Dir = t.TempDir()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "taxport.db")

	if err := RunTransform(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard)); err == nil {
		t.Fatal("expected error without a categories file")
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, cfg.Output.StatusFile)); err != nil {
		t.Errorf("status artifact should be written on failure: %v", err)
	}
}

func TestRunTransform_RequiresConfig(t *testing.T) {
	if err := RunTransform(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestWatchSources_MissingDirIsLogged(t *testing.T) {
	svc, dir := testutil.Service(t)
	if err := os.RemoveAll(filepath.Join(dir, "subcategories")); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	done := make(chan struct{})
	go func() {
		watchSources(context.Background(), svc, newLogger(&logs, slog.LevelInfo))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not fail on a missing dir")
	}
	if !strings.Contains(logs.String(), "source watcher stopped") {
		t.Errorf("logs = %s", logs.String())
	}
}
