// Package watcher turns file system events on module manifests into
// debounced reload signals for hot updates.
package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/strata/internal/log"
)

// DefaultDebounce is how long writes to a manifest must settle before a
// reload is signalled.
const DefaultDebounce = 300 * time.Millisecond

// ErrNoPaths is returned by New when there is nothing to watch.
var ErrNoPaths = errors.New("watcher needs at least one manifest path")

// Config lists the manifests to watch.
type Config struct {
	Paths    []string
	Debounce time.Duration
}

// DefaultConfig watches paths with DefaultDebounce.
func DefaultConfig(paths ...string) Config {
	return Config{Paths: paths, Debounce: DefaultDebounce}
}

// Watcher signals reloads for a fixed set of manifest files. Their parent
// directories are watched, so saves that replace the file are seen too.
type Watcher struct {
	fsw       *fsnotify.Watcher
	manifests map[string]bool
	debounce  time.Duration
	reloads   chan string

	mu      sync.Mutex
	timer   *time.Timer
	pending string

	stop     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New prepares a watcher. Paths are made absolute; a non-positive debounce
// means DefaultDebounce.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, ErrNoPaths
	}
	manifests := make(map[string]bool, len(cfg.Paths))
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		manifests[abs] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsw:       fsw,
		manifests: manifests,
		debounce:  debounce,
		reloads:   make(chan string, 1),
		stop:      make(chan struct{}),
	}, nil
}

// Start begins watching. The returned channel holds at most one signal: the
// path of the manifest that changed last. An unread signal is replaced by a
// newer one.
func (w *Watcher) Start() (<-chan string, error) {
	dirs := make(map[string]bool)
	for path := range w.manifests {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	go w.run()
	return w.reloads, nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		w.stopErr = w.fsw.Close()
	})
	return w.stopErr
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			if !w.manifests[path] || !changesContent(ev) {
				continue
			}
			log.Debug(log.CatWatcher, "manifest changed", "path", path, "op", ev.Op.String())
			w.schedule(path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err)
		}
	}
}

// changesContent reports events after which the file holds new content.
// Editors that save by rename produce a Create on the manifest name.
func changesContent(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

// schedule restarts the debounce window for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = path
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.fire)
		return
	}
	w.timer.Reset(w.debounce)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	path := w.pending
	w.pending = ""
	w.mu.Unlock()

	if path == "" {
		return
	}
	select {
	case <-w.stop:
		return
	default:
	}
	for {
		select {
		case w.reloads <- path:
			return
		default:
		}
		select {
		case stale := <-w.reloads:
			log.Debug(log.CatWatcher, "replacing unread reload", "stale", stale, "path", path)
		default:
		}
	}
}
