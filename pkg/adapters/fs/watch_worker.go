package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

const reconcileKey = "reconcile"

// watchWorker re-reads the tree when note files change outside the process.
type watchWorker struct {
	*worker.BaseWorker
	store     *Store
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(store *Store) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		store:      store,
	}
}

// Watch starts following external edits until ctx ends or the store closes.
// Subscribers receive fresh snapshots for every user whose notes changed on
// disk. The watcher runs under a supervisor and is restarted when it fails.
func (s *Store) Watch(ctx context.Context) error {
	s.mu.Lock()
	if s.supervisor != nil {
		s.mu.Unlock()
		return fmt.Errorf("store %s is already watched", s.Path)
	}
	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(s), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   30 * time.Second,
			MaxRestarts:     5,
			MaxDuration:     time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
	sup := supervisor.New("fs-watch", supervisor.StrategyOneForOne, spec)
	s.supervisor = sup
	s.mu.Unlock()

	if err := sup.Start(ctx); err != nil {
		s.mu.Lock()
		s.supervisor = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	// Events may have been missed between Initialize and the watch being armed.
	if _, err := s.Reconcile(ctx); err != nil {
		s.config.Logger.Warn("initial reconcile failed", "error", err)
	}
	return nil
}

// stopWatch stops the watcher supervisor, if any.
func (s *Store) stopWatch(ctx context.Context) error {
	s.mu.Lock()
	sup := s.supervisor
	s.supervisor = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.addTree(watcher); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.store.config.Debounce)
	w.store.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"path":              w.store.Path,
		}
	})
}

// addTree watches the root and every user directory under it.
func (w *watchWorker) addTree(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(w.store.Path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.store.Path, err)
	}
	entries, err := os.ReadDir(w.store.Path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && validSegment(e.Name()) {
			if err := watcher.Add(filepath.Join(w.store.Path, e.Name())); err != nil {
				return fmt.Errorf("failed to watch %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

// processFilesystemEvent filters an event and schedules a reconcile for it.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	logger := w.store.config.Logger
	rel, err := filepath.Rel(w.store.Path, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	// A new user directory: watch it and pick up files written before the watch was armed.
	if !strings.Contains(rel, "/") {
		if !event.Has(fsnotify.Create) || !validSegment(rel) {
			return false
		}
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() {
			return false
		}
		if err := w.watcher.Add(event.Name); err != nil {
			w.handleWatcherError(fmt.Errorf("failed to watch %s: %w", rel, err))
			return false
		}
		logger.Debug("watching new user directory", "user", rel)
		w.scheduleReconcile(ctx)
		return true
	}

	if !isNoteFile(rel) || event.Op == fsnotify.Chmod {
		return false
	}
	logger.Debug("note file changed", "path", rel, "op", event.Op.String())
	w.scheduleReconcile(ctx)
	return true
}

func (w *watchWorker) scheduleReconcile(ctx context.Context) {
	w.debouncer.add(reconcileKey, func() {
		lifecycle.Go(ctx, func(ctx context.Context) error {
			_, err := w.store.Reconcile(ctx)
			return err
		}, lifecycle.WithErrorHandler(func(err error) {
			w.handleWatcherError(fmt.Errorf("reconcile failed: %w", err))
		}))
	})
}

func (w *watchWorker) handleWatcherError(err error) {
	w.store.config.Logger.Error("fsnotify error", "error", err)
	if w.store.config.ErrorHandler != nil {
		w.store.config.ErrorHandler(err)
	}
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.store.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.store.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}
