package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period before a change triggers a
// reload. Editors often rewrite files as several rapid events.
const DefaultDebounceInterval = 200 * time.Millisecond

// Watcher hot-reloads a file-backed catalog when its source file changes.
// It watches the containing directory rather than the file itself so that
// atomic rename-over-replace writes keep being observed.
type Watcher struct {
	catalog  *Catalog
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce *debouncer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the catalog's source file at path.
// A non-positive debounce falls back to DefaultDebounceInterval.
func NewWatcher(c *Catalog, path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		catalog: c,
		path:    filepath.Clean(path),
		logger:  logger.With("component", "catalog.watcher"),
		watcher: fsw,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	w.debounce = newDebouncer(debounce, w.reload)
	return w, nil
}

// Watch blocks processing file events until the context is canceled or Stop
// is called. Reload failures are logged and leave the serving snapshot
// untouched.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.logger.Info("catalog watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("catalog watcher stopped")
			return nil

		case <-w.stopCh:
			w.logger.Info("catalog watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcess(event) {
				continue
			}
			w.logger.Debug("catalog file event", "path", event.Name, "op", event.Op.String())
			w.debounce.Trigger()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("catalog watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for Watch to return.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.debounce.Stop()
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}
	return nil
}

// shouldProcess filters directory events down to writes of the source file.
func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *Watcher) reload() {
	if err := w.catalog.Reload(); err != nil {
		w.logger.Error("catalog reload failed", "error", err)
		return
	}
	w.logger.Info("catalog reloaded", "path", w.path, "models", w.catalog.Len())
}

// debouncer coalesces rapid triggers into one callback after a quiet period.
type debouncer struct {
	interval time.Duration
	callback func()

	mu     sync.Mutex
	timer  *time.Timer
	stopCh chan struct{}
}

func newDebouncer(interval time.Duration, callback func()) *debouncer {
	return &debouncer{
		interval: interval,
		callback: callback,
		stopCh:   make(chan struct{}),
	}
}

// Trigger arms the debounce timer, resetting any pending one.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
		default:
			d.callback()
		}
	})
}

// Stop cancels any pending trigger and prevents future callbacks.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	close(d.stopCh)
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
