package reactive

import (
	"sync"
)

// WatchCallback receives the new value and a snapshot of the previous one.
type WatchCallback func(newValue, oldValue any)

// Watcher re-evaluates a source on demand and calls back when the result
// differs, by deep comparison, from the last observed result.
type Watcher struct {
	mu      sync.Mutex
	source  func() any
	cb      WatchCallback
	last    any
	stopped bool
}

// NewWatcher evaluates source once to establish the baseline. With immediate
// set, cb runs right away with a nil old value.
func NewWatcher(source func() any, cb WatchCallback, immediate bool) *Watcher {
	w := &Watcher{source: source, cb: cb}
	v := source()
	w.last = Snapshot(v)
	if immediate {
		cb(v, nil)
	}
	return w
}

// Check re-evaluates the source and fires the callback when the value
// changed. Returns true when the callback fired.
func (w *Watcher) Check() bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	v := w.source()
	if Equal(v, w.last) {
		w.mu.Unlock()
		return false
	}
	old := w.last
	w.last = Snapshot(v)
	cb := w.cb
	w.mu.Unlock()

	cb(v, old)
	return true
}

// Stop disables the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}

// Stopped reports whether Stop has run.
func (w *Watcher) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}
