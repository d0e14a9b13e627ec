// Package watch re-runs reasoning when Mangle rule files change on disk.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"semkb/internal/logging"
	"semkb/internal/metrics"
)

// ReloadFunc is invoked once per settled batch with the changed rule files,
// sorted. A returned error is logged and counted; the watcher keeps running.
type ReloadFunc func(ctx context.Context, changed []string) error

// RuleWatcher watches .mg files and reports settled changes in batches.
// Files are watched through their parent directory so editors that replace
// files on save keep being observed.
type RuleWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	dirs        []string
	files       map[string]bool // explicit rule files
	ruleDirs    map[string]bool // directories whose .mg files are all watched
	reload      ReloadFunc
	metrics     *metrics.Metrics
	debounceMap map[string]time.Time
	debounceDur time.Duration
	tick        time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Reloads       int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Option configures a RuleWatcher.
type Option func(*RuleWatcher)

// WithDebounce sets how long a file must stay quiet before it is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *RuleWatcher) {
		if d > 0 {
			w.debounceDur = d
		}
	}
}

// WithMetrics records every reload outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *RuleWatcher) { w.metrics = m }
}

// New creates a watcher over paths. A path may name a rule file or a
// directory of rule files.
func New(paths []string, reload ReloadFunc, opts ...Option) (*RuleWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &RuleWatcher{
		watcher:     fw,
		files:       make(map[string]bool),
		ruleDirs:    make(map[string]bool),
		reload:      reload,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		tick:        100 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounceDur < w.tick {
		w.tick = w.debounceDur
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		dir := abs
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			dir = filepath.Dir(abs)
			w.files[abs] = true
		} else {
			w.ruleDirs[abs] = true
		}
		if !slices.Contains(w.dirs, dir) {
			w.dirs = append(w.dirs, dir)
		}
	}

	return w, nil
}

// Start begins watching. It does not block; events are handled on a
// background goroutine until Stop is called or ctx is cancelled.
func (w *RuleWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			logging.Get(logging.CategoryWatch).Warn("RuleWatcher: cannot watch %s: %v", dir, err)
			continue
		}
		logging.Watch("RuleWatcher: watching directory: %s", dir)
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *RuleWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("RuleWatcher: error closing watcher: %v", err)
	}
	logging.Watch("RuleWatcher: stopped")
}

// Done is closed once the event loop has exited.
func (w *RuleWatcher) Done() <-chan struct{} { return w.doneCh }

func (w *RuleWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("RuleWatcher: context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("RuleWatcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *RuleWatcher) handleEvent(event fsnotify.Event) {
	if !w.relevant(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	logging.WatchDebug("RuleWatcher: %s %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// relevant reports whether name is an explicit rule file or a .mg file
// directly inside a directory passed to New.
func (w *RuleWatcher) relevant(name string) bool {
	if w.files[name] {
		return true
	}
	return strings.HasSuffix(name, ".mg") && w.ruleDirs[filepath.Dir(name)]
}

// flush reports every path that has been quiet for the debounce window.
func (w *RuleWatcher) flush(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	slices.Sort(settled)

	logging.Watch("RuleWatcher: reloading after changes to %v", settled)
	timer := logging.StartTimer(logging.CategoryWatch, "RuleWatcher reload")
	err := w.reload(ctx, settled)
	timer.StopWithInfo()
	w.metrics.RecordReload(err == nil)

	w.mu.Lock()
	w.stats.Reloads++
	if err != nil {
		w.stats.Errors++
	}
	w.mu.Unlock()

	if err != nil {
		logging.Get(logging.CategoryWatch).Error("RuleWatcher: reload failed: %v", err)
	}
}

// GetStats returns the current watcher statistics.
func (w *RuleWatcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the watcher is running.
func (w *RuleWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedDirs returns the directories being watched.
func (w *RuleWatcher) WatchedDirs() []string {
	return slices.Clone(w.dirs)
}
