package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/langswitch/internal/integration"
	"github.com/dshills/langswitch/internal/logging"
)

// ErrWatcherClosed is returned when using a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// DefaultReloadDelay coalesces the burst of events an editor save produces.
const DefaultReloadDelay = 100 * time.Millisecond

// Watcher reloads the configuration file when it changes.
//
// The containing directory is watched so that atomic replace-by-rename
// saves are seen. Invalid files are reported to the error handler and the
// previous configuration stays in effect.
type Watcher struct {
	path  string
	fsw   *fsnotify.Watcher
	delay time.Duration

	onReload func(Config)
	onError  func(error)
	logger   *logging.Logger

	reload *integration.Debouncer[struct{}]

	mu     sync.Mutex
	closed bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithReloadHandler sets the function receiving each reloaded Config.
func WithReloadHandler(fn func(Config)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithErrorHandler sets the function receiving load and watch errors.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithReloadDelay sets the debounce window for change bursts.
func WithReloadDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.delay = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher starts watching the directory of path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:   abs,
		delay:  DefaultReloadDelay,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.reload = integration.NewDebouncer(w.delay, func(struct{}) { w.load() })

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	w.fsw = fsw
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run dispatches file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("config changed", "path", w.path, "op", event.Op.String())
			w.reload.Call(struct{}{})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.report(fmt.Errorf("watch %s: %w", w.path, err))
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.reload.Cancel()
	return w.fsw.Close()
}

func (w *Watcher) load() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.report(err)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	if w.onReload != nil {
		if err := integration.SafeCall(func() { w.onReload(cfg) }); err != nil {
			w.report(err)
		}
	}
}

func (w *Watcher) report(err error) {
	w.logger.Warn("config reload failed", "path", w.path, "error", err)
	if w.onError != nil {
		_ = integration.SafeCall(func() { w.onError(err) })
	}
}
