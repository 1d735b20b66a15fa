package store

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/strata/internal/log"
)

// logBuffer collects log output for assertions.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *logBuffer {
	t.Helper()
	buf := &logBuffer{}
	cleanup := log.InitWriter(buf)
	t.Cleanup(cleanup)
	return buf
}

func counterDefinition() *Definition {
	return &Definition{
		State: StateFunc(func() State { return State{"count": 0} }),
		Mutations: map[string]MutationHandler{
			"inc": func(s State, payload any) {
				s["count"] = s["count"].(int) + payload.(int)
			},
		},
		Getters: map[string]GetterFunc{
			"double": func(s State, _ Getters, _ State, _ Getters) any {
				return s["count"].(int) * 2
			},
		},
	}
}

func mustStore(t *testing.T, def *Definition, opts ...Option) *Store {
	t.Helper()
	s, err := New(def, opts...)
	require.NoError(t, err)
	return s
}

func mustCommit(t *testing.T, s *Store, typ string, payload any) {
	t.Helper()
	require.NoError(t, s.Commit(context.Background(), typ, payload))
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
	values []any
}

func (r *recordingSink) Emit(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.values = append(r.values, payload)
}

func (r *recordingSink) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type sinkFunc func(event string, payload any)

func (f sinkFunc) Emit(event string, payload any) { f(event, payload) }

// teeSink forwards every event to each sink in order.
type teeSink []Sink

func (t teeSink) Emit(event string, payload any) {
	for _, s := range t {
		s.Emit(event, payload)
	}
}
