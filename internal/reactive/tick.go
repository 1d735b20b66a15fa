package reactive

import "time"

// NextTick runs fn on its own goroutine once the caller has returned to
// its scheduler. The store uses it to tear down a replaced cache after
// in-flight reads against it have finished.
func NextTick(fn func()) {
	time.AfterFunc(0, fn)
}
