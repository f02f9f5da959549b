// Package watch re-runs a callback whenever a plan file in a directory is
// created or rewritten.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kingrea/agx/internal/logging"
)

// DefaultDebounce collapses the burst of events editors emit per save.
const DefaultDebounce = 150 * time.Millisecond

// Handler is called with the path of a changed plan file.
type Handler func(path string)

// Watcher observes one directory.
type Watcher struct {
	dir      string
	handle   Handler
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New starts watching dir. Call Run to deliver events and Close when done.
func New(dir string, handle Handler, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", dir, err)
	}
	w := &Watcher{dir: dir, handle: handle, debounce: DefaultDebounce, watcher: fw}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.OrDiscard(w.logger).With("component", "watch", "dir", dir)
	return w, nil
}

// Run delivers debounced events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		mu      sync.Mutex
		pending = map[string]*time.Timer{}
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()
	fire := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok && t.Stop() {
			wg.Done()
		}
		wg.Add(1)
		var timer *time.Timer
		timer = time.AfterFunc(w.debounce, func() {
			defer wg.Done()
			mu.Lock()
			if pending[path] == timer {
				delete(pending, path)
			}
			mu.Unlock()
			w.handle(path)
		})
		pending[path] = timer
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !IsPlanFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.logger.Debug("plan changed", "path", event.Name, "op", event.Op.String())
				fire(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "err", err)
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// IsPlanFile reports whether name looks like a plan document.
func IsPlanFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
