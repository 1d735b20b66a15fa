package store

import (
	"context"
	"fmt"
	"sync"
)

// Future is the settled-once result of an action.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Resolved returns a future already settled with value.
func Resolved(value any) *Future {
	f := newFuture()
	f.settle(value, nil)
	return f
}

// Rejected returns a future already settled with err.
func Rejected(err error) *Future {
	f := newFuture()
	f.settle(nil, err)
	return f
}

// Go runs fn on a new goroutine and settles the future with its result.
// A panic in fn rejects the future instead of crashing the process.
func Go(fn func() (any, error)) *Future {
	f := newFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.settle(nil, fmt.Errorf("action panicked: %v", r))
			}
		}()
		f.settle(fn())
	}()
	return f
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has a result.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err blocks until the future settles and returns its error.
func (f *Future) Err() error {
	<-f.done
	return f.err
}

// onReject returns a future that settles like f, after fn has seen the
// rejection reason.
func (f *Future) onReject(fn func(error)) *Future {
	if f.Settled() {
		if f.err != nil {
			fn(f.err)
		}
		return f
	}
	out := newFuture()
	go func() {
		<-f.done
		if f.err != nil {
			fn(f.err)
		}
		out.settle(f.value, f.err)
	}()
	return out
}

// All settles once every future has settled. It resolves with the values in
// argument order, or rejects with the first rejection in argument order.
func All(futures ...*Future) *Future {
	out := newFuture()
	collect := func() {
		values := make([]any, len(futures))
		var firstErr error
		for i, f := range futures {
			<-f.done
			values[i] = f.value
			if f.err != nil && firstErr == nil {
				firstErr = f.err
			}
		}
		if firstErr != nil {
			out.settle(nil, firstErr)
			return
		}
		out.settle(values, nil)
	}

	for _, f := range futures {
		if !f.Settled() {
			go collect()
			return out
		}
	}
	collect()
	return out
}

// normalizeResult turns an action handler's return into a future.
func normalizeResult(value any, err error) *Future {
	if err != nil {
		return Rejected(err)
	}
	if f, ok := value.(*Future); ok && f != nil {
		return f
	}
	return Resolved(value)
}
