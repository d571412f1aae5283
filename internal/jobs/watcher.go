package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"callscreen/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-syncs the catalog whenever its file changes.
type Watcher struct {
	mu sync.Mutex

	path          string
	lastModTime   time.Time
	debounceDelay time.Duration
	debounceTimer *time.Timer
	reloadChan    chan struct{}

	onChange func()
	logger   *errors.Logger
}

// NewWatcher creates a watcher for path. onChange runs on the watch loop
// goroutine after each debounced change.
func NewWatcher(path string, debounceDelay time.Duration, onChange func(), logger *errors.Logger) *Watcher {
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}
	if logger == nil {
		logger = errors.Discard()
	}
	return &Watcher{
		path:          path,
		debounceDelay: debounceDelay,
		reloadChan:    make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	// The directory is watched too so editors that replace the file by
	// rename are noticed.
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	w.changed()

	w.logger.Info("Job catalog watcher started", "file", w.path, "debounce_delay", w.debounceDelay)
	defer w.stopTimer()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.scheduleReload()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.LogError(err, "Job catalog watcher error")

		case <-w.reloadChan:
			if w.changed() {
				w.logger.Info("Job catalog changed, reloading", "file", w.path)
				w.onChange()
			}

		case <-ctx.Done():
			w.logger.Info("Job catalog watcher stopped")
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) &&
		filepath.Base(event.Name) != filepath.Base(w.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// changed reports whether the file's modification time moved forward.
func (w *Watcher) changed() bool {
	stat, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if stat.ModTime().After(w.lastModTime) {
		w.lastModTime = stat.ModTime()
		return true
	}
	return false
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case w.reloadChan <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
}
