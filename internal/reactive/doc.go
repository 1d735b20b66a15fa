// Package reactive provides the change-tracking primitives the store builds
// its derived state on: a lazily evaluated cache of named values, value
// watchers that fire once per distinct change, deep snapshots with textual
// diffs for strict mode, and deferred teardown of replaced caches.
//
// There is no dependency tracking. Every derived value is recomputed on the
// first read after an invalidation, and the store invalidates after every
// committing section, so reads always reflect the latest committed state.
package reactive
