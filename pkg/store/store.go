package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/strata/internal/log"
	"github.com/zjrosen/strata/internal/reactive"
	"github.com/zjrosen/strata/internal/tracing"
)

// Mutation describes a committed mutation, as seen by subscribers.
type Mutation struct {
	Type    string
	Payload any
}

// Subscriber is notified after every commit.
type Subscriber func(m Mutation, state State)

// Store holds the state tree and the compiled module tree.
//
// Writers (Commit, ReplaceState, RegisterModule, UnregisterModule and
// HotUpdate) are serialized. Subscribers and watchers run after the writer
// releases the store, so they may commit. A mutation handler must not call
// back into the store's writers.
type Store struct {
	tree     *Tree
	strict   bool
	caching  bool
	devtools Sink
	tracer   trace.Tracer

	writeMu    sync.RWMutex
	committing atomic.Bool
	root       atomic.Pointer[State]
	reg        atomic.Pointer[registry]
	cache      atomic.Pointer[reactive.Cache]

	snapMu   sync.Mutex
	snapshot any

	subMu    sync.RWMutex
	subs     map[string]Subscriber
	subOrder []string

	watchMu    sync.Mutex
	watchers   map[string]*reactive.Watcher
	watchOrder []string
}

// New compiles def into a store. Plugins run last, in order, followed by the
// devtools plugin when a sink is attached.
func New(def *Definition, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	tree, err := NewTree(def)
	if err != nil {
		return nil, err
	}

	s := &Store{
		tree:     tree,
		strict:   o.strict,
		caching:  o.caching,
		devtools: o.devtools,
		tracer:   o.tracer,
		subs:     make(map[string]Subscriber),
		watchers: make(map[string]*reactive.Watcher),
	}
	rootState := tree.root.state
	s.root.Store(&rootState)

	reg := newRegistry()
	s.installModule(reg, rootState, nil, tree.root, false)
	s.reg.Store(reg)
	s.resetCache()
	if s.strict {
		s.takeSnapshot()
	}

	plugins := slices.Clone(o.plugins)
	if s.devtools != nil {
		plugins = append(plugins, devtoolsPlugin(s.devtools))
	}
	for _, p := range plugins {
		p(s)
	}

	log.Debug(log.CatStore, "store created",
		"mutations", len(reg.mutations), "actions", len(reg.actions), "getters", len(reg.getters), "strict", s.strict)
	return s, nil
}

func devtoolsPlugin(sink Sink) Plugin {
	return func(s *Store) {
		sink.Emit(EventInit, reactive.Snapshot(s.State()))
		s.Subscribe(func(m Mutation, state State) {
			snap, _ := reactive.Snapshot(state).(State)
			sink.Emit(EventMutation, MutationRecord{Mutation: m, State: snap})
		})
	}
}

// State returns the live root state tree.
func (s *Store) State() State {
	return *s.root.Load()
}

// Getters returns every getter under its global name.
func (s *Store) Getters() Getters {
	return Getters{cache: s.cache.Load()}
}

// Read runs fn while writers are held off. Use it to read state from a
// goroutine other than the one committing.
func (s *Store) Read(fn func(state State, getters Getters)) {
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()
	fn(s.State(), s.Getters())
}

// Commit runs every mutation handler registered under typ, then notifies
// subscribers. An unknown type is logged and returns ErrUnknownMutation.
func (s *Store) Commit(ctx context.Context, typ string, payload any) error {
	s.assertCommitted()

	_, span := tracing.Start(ctx, s.tracer, tracing.SpanPrefixCommit+typ,
		attribute.String(tracing.AttrOperationType, typ))

	handlers := s.reg.Load().mutations[typ]
	if len(handlers) == 0 {
		log.Error(log.CatStore, "unknown mutation type", "type", typ)
		span.AddEvent(tracing.EventUnknownOperation)
		err := fmt.Errorf("%w: %s", ErrUnknownMutation, typ)
		tracing.Finish(span, err)
		return err
	}
	span.SetAttributes(attribute.Int(tracing.AttrHandlerCount, len(handlers)))

	s.write(func() {
		s.withCommit(func() {
			for _, h := range handlers {
				h(payload)
			}
		})
	})

	n := s.notifySubscribers(Mutation{Type: typ, Payload: payload})
	span.SetAttributes(attribute.Int(tracing.AttrSubscriberCount, n))
	s.checkWatchers()
	tracing.Finish(span, nil)
	return nil
}

// CommitPayload commits p under p.Type() with p itself as the payload.
func (s *Store) CommitPayload(ctx context.Context, p Typed) error {
	return s.Commit(ctx, p.Type(), p)
}

// Dispatch runs the action handlers registered under typ. With one handler
// its future is returned as is; with several the result is All of them.
// An unknown type is logged and yields a future rejected with
// ErrUnknownAction.
func (s *Store) Dispatch(ctx context.Context, typ string, payload any) *Future {
	s.assertCommitted()

	ctx, span := tracing.Start(ctx, s.tracer, tracing.SpanPrefixDispatch+typ,
		attribute.String(tracing.AttrOperationType, typ))

	handlers := s.reg.Load().actions[typ]
	if len(handlers) == 0 {
		log.Error(log.CatStore, "unknown action type", "type", typ)
		span.AddEvent(tracing.EventUnknownOperation)
		err := fmt.Errorf("%w: %s", ErrUnknownAction, typ)
		tracing.Finish(span, err)
		return Rejected(err)
	}
	span.SetAttributes(attribute.Int(tracing.AttrHandlerCount, len(handlers)))

	var f *Future
	if len(handlers) == 1 {
		f = handlers[0](ctx, payload)
	} else {
		futures := make([]*Future, len(handlers))
		for i, h := range handlers {
			futures[i] = h(ctx, payload)
		}
		f = All(futures...)
	}

	if span.IsRecording() {
		go func() {
			<-f.Done()
			if f.err != nil {
				span.AddEvent(tracing.EventRejected)
			}
			tracing.Finish(span, f.err)
		}()
	}
	return f
}

// DispatchPayload dispatches p under p.Type() with p itself as the payload.
func (s *Store) DispatchPayload(ctx context.Context, p Typed) *Future {
	return s.Dispatch(ctx, p.Type(), p)
}

// Subscribe registers fn for every commit and returns its unsubscribe func.
func (s *Store) Subscribe(fn Subscriber) func() {
	return s.SubscribeKeyed(uuid.NewString(), fn)
}

// SubscribeKeyed registers fn under key. A key already subscribed keeps its
// original subscriber, so repeated calls register once.
func (s *Store) SubscribeKeyed(key string, fn Subscriber) func() {
	s.subMu.Lock()
	if _, ok := s.subs[key]; !ok {
		s.subs[key] = fn
		s.subOrder = append(s.subOrder, key)
	}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[key]; !ok {
			return
		}
		delete(s.subs, key)
		s.subOrder = slices.DeleteFunc(s.subOrder, func(k string) bool { return k == key })
	}
}

func (s *Store) notifySubscribers(m Mutation) int {
	s.subMu.RLock()
	subs := make([]Subscriber, 0, len(s.subOrder))
	for _, key := range s.subOrder {
		subs = append(subs, s.subs[key])
	}
	s.subMu.RUnlock()

	state := s.State()
	for _, fn := range subs {
		fn(m, state)
	}
	return len(subs)
}

// Watch calls cb whenever getter's result changes after a store write.
// It returns a func that stops the watcher.
func (s *Store) Watch(getter func(state State, getters Getters) any, cb func(newValue, oldValue any), opts ...WatchOption) func() {
	var o watchOptions
	for _, opt := range opts {
		opt(&o)
	}

	w := reactive.NewWatcher(func() any {
		return getter(s.State(), s.Getters())
	}, cb, o.immediate)

	key := uuid.NewString()
	s.watchMu.Lock()
	s.watchers[key] = w
	s.watchOrder = append(s.watchOrder, key)
	s.watchMu.Unlock()

	return func() {
		w.Stop()
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		delete(s.watchers, key)
		s.watchOrder = slices.DeleteFunc(s.watchOrder, func(k string) bool { return k == key })
	}
}

func (s *Store) checkWatchers() {
	s.watchMu.Lock()
	watchers := make([]*reactive.Watcher, 0, len(s.watchOrder))
	for _, key := range s.watchOrder {
		watchers = append(watchers, s.watchers[key])
	}
	s.watchMu.Unlock()

	for _, w := range watchers {
		w.Check()
	}
}

// ReplaceState swaps the whole state tree. Nothing is merged or migrated.
func (s *Store) ReplaceState(state State) {
	s.assertCommitted()
	if state == nil {
		state = State{}
	}
	s.write(func() {
		s.withCommit(func() {
			s.root.Store(&state)
		})
	})
	log.Debug(log.CatStore, "state replaced")
	s.checkWatchers()
}

// RegisterModule adds a runtime module at path and attaches its state.
// A subtree claiming a namespace that is already taken is rejected with
// ErrDuplicateNamespace and nothing is registered.
func (s *Store) RegisterModule(path []string, def *Definition) (err error) {
	s.assertCommitted()

	_, span := tracing.Start(context.Background(), s.tracer, tracing.SpanPrefixModule+"register",
		attribute.String(tracing.AttrModulePath, joinPath(path)))
	defer func() { tracing.Finish(span, err) }()

	s.write(func() {
		if err = s.tree.Register(path, def, true); err != nil {
			return
		}
		m, _ := s.tree.Get(path)
		reg := s.reg.Load().clone()
		if err = s.namespaceConflict(reg, path, m); err != nil {
			_, _ = s.tree.Unregister(path)
			return
		}
		s.installModule(reg, s.State(), path, m, false)
		s.reg.Store(reg)
		s.resetCache()
	})
	if err != nil {
		log.ErrorErr(log.CatModule, "register module failed", err, "path", joinPath(path))
		return err
	}
	s.checkWatchers()
	return nil
}

// UnregisterModule removes the runtime module at path along with its state
// branch, then rebuilds every registry. Modules that were part of the
// definition passed to New cannot be removed; the call logs and does nothing.
func (s *Store) UnregisterModule(path []string) (err error) {
	s.assertCommitted()

	_, span := tracing.Start(context.Background(), s.tracer, tracing.SpanPrefixModule+"unregister",
		attribute.String(tracing.AttrModulePath, joinPath(path)))
	defer func() { tracing.Finish(span, err) }()

	var removed bool
	s.write(func() {
		if removed, err = s.tree.Unregister(path); err != nil || !removed {
			return
		}
		parentPath, key := path[:len(path)-1], path[len(path)-1]
		if parentState := nestedState(s.State(), parentPath); parentState != nil {
			s.withCommit(func() {
				delete(parentState, key)
			})
		}
		s.resetStore(true)
	})
	if err != nil {
		log.ErrorErr(log.CatModule, "unregister module failed", err, "path", joinPath(path))
		return err
	}
	if !removed {
		log.Warn(log.CatModule, "static module cannot be unregistered", "path", joinPath(path))
		return nil
	}
	s.checkWatchers()
	return nil
}

// HotUpdate swaps operation tables across the tree and rebuilds every
// registry, keeping all state. Modules named in def that do not exist are
// skipped and reported in the returned error; the rest of the update still
// applies.
func (s *Store) HotUpdate(def *Definition) (err error) {
	s.assertCommitted()
	if def == nil {
		return ErrNilDefinition
	}

	_, span := tracing.Start(context.Background(), s.tracer, tracing.SpanPrefixModule+"hot_update",
		attribute.Bool(tracing.AttrHot, true))
	defer func() { tracing.Finish(span, err) }()

	s.write(func() {
		err = s.tree.Update(def)
		s.resetStore(true)
	})
	log.Info(log.CatHot, "hot update applied", "mismatches", err != nil)
	s.checkWatchers()
	return err
}

// Namespace returns the namespaced module registered under ns, for example
// "cart/".
func (s *Store) Namespace(ns string) (*Module, bool) {
	m, ok := s.reg.Load().namespaces[ns]
	return m, ok
}

// Module returns the module at path.
func (s *Store) Module(path []string) (*Module, bool) {
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()
	return s.tree.Get(path)
}

// HasMutation reports whether name has at least one mutation handler.
func (s *Store) HasMutation(name string) bool {
	return len(s.reg.Load().mutations[name]) > 0
}

// HasAction reports whether name has at least one action handler.
func (s *Store) HasAction(name string) bool {
	return len(s.reg.Load().actions[name]) > 0
}

// HasGetter reports whether a getter is registered under name.
func (s *Store) HasGetter(name string) bool {
	_, ok := s.reg.Load().getters[name]
	return ok
}

func (s *Store) write(fn func()) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fn()
}

// resetStore recompiles the registry from the root. Callers hold writeMu.
func (s *Store) resetStore(hot bool) {
	reg := newRegistry()
	s.installModule(reg, s.State(), nil, s.tree.root, hot)
	s.reg.Store(reg)
	s.resetCache()
	log.Debug(log.CatStore, "registries rebuilt", "hot", hot, "getters", len(reg.getters))
}

// resetCache replaces the getter cache with one built from the current
// registry. The old cache is torn down on the next tick so readers holding
// it finish first.
func (s *Store) resetCache() {
	reg := s.reg.Load()
	computes := make(map[string]reactive.ComputeFunc, len(reg.getters))
	for name, g := range reg.getters {
		computes[name] = reactive.ComputeFunc(g)
	}
	if old := s.cache.Swap(reactive.NewCache(computes, s.caching)); old != nil {
		reactive.NextTick(old.Destroy)
	}
}

// withCommit runs fn with the committing flag set, restoring the previous
// value afterwards. Leaving the outermost section invalidates getters and
// refreshes the strict-mode baseline.
func (s *Store) withCommit(fn func()) {
	prev := s.committing.Swap(true)
	defer func() {
		s.committing.Store(prev)
		if !prev {
			s.afterCommit()
		}
	}()
	fn()
}

func (s *Store) afterCommit() {
	if c := s.cache.Load(); c != nil {
		c.Invalidate()
	}
	if s.strict {
		s.takeSnapshot()
	}
}

func (s *Store) takeSnapshot() {
	snap := reactive.Snapshot(s.State())
	s.snapMu.Lock()
	s.snapshot = snap
	s.snapMu.Unlock()
}

// assertCommitted panics with ErrInvariantViolation when strict mode is on
// and the state tree no longer matches the tree left by the last committing
// section.
func (s *Store) assertCommitted() {
	if !s.strict || s.committing.Load() {
		return
	}
	s.writeMu.RLock()
	current := reactive.Snapshot(s.State())
	s.writeMu.RUnlock()

	s.snapMu.Lock()
	baseline := s.snapshot
	if reactive.Equal(baseline, current) {
		s.snapMu.Unlock()
		return
	}
	s.snapshot = current
	s.snapMu.Unlock()

	diff := reactive.Diff(baseline, current)
	log.Error(log.CatStrict, "state mutated outside a mutation handler", "diff", diff)
	panic(fmt.Errorf("%w:\n%s", ErrInvariantViolation, diff))
}
