// Package watch re-runs a conversion when its input file changes.
package watch

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of editor writes into one run.
const DefaultDebounce = 300 * time.Millisecond

// Watcher triggers a callback after the watched file settles.
type Watcher struct {
	watcher   *fsnotify.Watcher
	target    string
	trigger   func(path string) error
	busy      func() bool
	debouncer *debouncer
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	stopped  bool
}

// New creates a watcher for path. trigger runs after changes stop arriving for
// debounce; it is skipped while busy reports true. busy may be nil.
func New(path string, debounce time.Duration, trigger func(path string) error, busy func() bool, handler slog.Handler) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watched file %q: %w", path, err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if busy == nil {
		busy = func() bool { return false }
	}
	return &Watcher{
		watcher:   fsWatcher,
		target:    abs,
		trigger:   trigger,
		busy:      busy,
		debouncer: &debouncer{duration: debounce},
		logger:    slog.New(handler).With(slog.String("component", "watch")),
		done:      make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file, so that editors replacing the
// file by rename are seen too.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.target)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("Watching input file", slog.String("path", w.target))
	go w.processEvents()
	return nil
}

// Done is closed when event processing has ended.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) processEvents() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.target {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("Input file changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
	w.debouncer.debounce(w.fire)
}

func (w *Watcher) fire() {
	if w.busy() {
		w.logger.Info("Conversion still running, skipping re-run", slog.String("file", w.target))
		return
	}
	if err := w.trigger(w.target); err != nil {
		w.logger.Error("Failed to re-run after file change", slog.String("file", w.target), slog.Any("error", err))
		return
	}
	w.logger.Info("Re-ran conversion after file change", slog.String("file", w.target))
}

func (d *debouncer) debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Close stops watching. A pending trigger is cancelled.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.debouncer.stop()
		err = w.watcher.Close()
	})
	return err
}
