// Package watch triggers index refreshes when a recordings directory changes.
// Filesystem locations are watched with fsnotify; bursts of events are
// debounced into one refresh. An optional interval adds periodic refreshes,
// which is the only mode for object storage.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/franz/bcr-index/internal/util"
)

// DefaultDebounce is the quiet period after the last event before refreshing
const DefaultDebounce = 2 * time.Second

// RefreshFunc runs one refresh pass
type RefreshFunc func(ctx context.Context) error

// Config holds watcher configuration
type Config struct {
	Dir      string        // directory to watch; empty disables fsnotify
	Refresh  RefreshFunc
	Debounce time.Duration // defaults to DefaultDebounce
	Interval time.Duration // periodic refresh; zero disables it
	Ignore   []string      // base names whose changes never trigger a refresh
}

// Watcher turns directory changes into refresh calls
type Watcher struct {
	dir      string
	refresh  RefreshFunc
	debounce time.Duration
	interval time.Duration
	ignore   map[string]bool
}

// New creates a Watcher
func New(cfg *Config) *Watcher {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ignore := make(map[string]bool, len(cfg.Ignore))
	for _, name := range cfg.Ignore {
		ignore[name] = true
	}
	return &Watcher{
		dir:      cfg.Dir,
		refresh:  cfg.Refresh,
		debounce: debounce,
		interval: cfg.Interval,
		ignore:   ignore,
	}
}

// Run blocks until ctx is done, calling Refresh after changes settle and on
// every interval tick. Refresh errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	if w.dir == "" && w.interval <= 0 {
		return fmt.Errorf("nothing to watch: no directory and no interval")
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.dir != "" {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer fw.Close()
		if err := fw.Add(w.dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", w.dir, err)
		}
		events, errs = fw.Events, fw.Errors
		util.InfoLog("Watching %s for changes", w.dir)
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
		util.InfoLog("Refreshing every %v", w.interval)
	}

	debounce := time.NewTimer(w.debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !w.Relevant(ev) {
				continue
			}
			util.DebugLog("Change detected: %s %s", ev.Op, filepath.Base(ev.Name))
			debounce.Reset(w.debounce)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			util.WarnLog("Watcher error: %v", err)

		case <-debounce.C:
			w.run(ctx, "change")

		case <-tick:
			w.run(ctx, "interval")
		}
	}
}

// Relevant reports whether ev should trigger a refresh. Permission changes
// and files in the ignore list never do.
func (w *Watcher) Relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return !w.ignore[filepath.Base(ev.Name)]
}

func (w *Watcher) run(ctx context.Context, reason string) {
	util.DebugLog("Refresh triggered by %s", reason)
	if err := w.refresh(ctx); err != nil {
		util.ErrorLog("Refresh failed: %v", err)
	}
}
