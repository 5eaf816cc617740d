package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for further source events before
// re-running the transform.
const DefaultDebounce = 250 * time.Millisecond

// Watch re-runs the transform whenever a YAML source file is created,
// written, removed or renamed, until ctx is cancelled. Bursts of events are
// collapsed into one run after debounce. Run failures are logged and the
// watcher keeps going.
func (s *Service) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := s.watchDirs()
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return err
		}
	}
	coreFile := filepath.Join(s.sources.Root(), filepath.FromSlash(s.paths.CategoriesFile))
	subDir := filepath.Join(s.sources.Root(), filepath.FromSlash(s.paths.SubcategoriesDir))

	s.logger.Info("watcher: started", slog.Any("dirs", dirs))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Warn("watcher: run failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isSourceEvent(ev.Name, coreFile, subDir) {
				continue
			}
			s.logger.Debug("watcher: source changed", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// watchDirs returns the directory of the categories file and the
// subcategories dir, without duplicates.
func (s *Service) watchDirs() []string {
	root := s.sources.Root()
	coreDir := filepath.Dir(filepath.Join(root, filepath.FromSlash(s.paths.CategoriesFile)))
	subDir := filepath.Join(root, filepath.FromSlash(s.paths.SubcategoriesDir))
	dirs := []string{coreDir}
	if !slices.Contains(dirs, subDir) {
		dirs = append(dirs, subDir)
	}
	return dirs
}

func isSourceEvent(name, coreFile, subDir string) bool {
	if filepath.Clean(name) == coreFile {
		return true
	}
	if filepath.Dir(name) != subDir {
		return false
	}
	return slices.Contains(SourceExtensions, strings.ToLower(filepath.Ext(name)))
}
