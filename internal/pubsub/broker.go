package pubsub

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber channel capacity used by NewBroker.
const DefaultBufferSize = 64

type subscription[T any] struct {
	ch chan Event[T]
}

// Broker delivers each published event to every live subscriber, in
// subscription order. Publish never blocks: a subscriber whose buffer is
// full misses the event and the miss is counted in Dropped.
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   []*subscription[T]
	closed chan struct{}
	buffer int

	seq     atomic.Uint64
	dropped atomic.Int64
}

// NewBroker creates a broker with DefaultBufferSize.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](DefaultBufferSize)
}

// NewBrokerWithBuffer creates a broker whose subscribers buffer size events.
// Sizes below 1 are raised to 1.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return &Broker[T]{
		closed: make(chan struct{}),
		buffer: max(size, 1),
	}
}

// Subscribe returns a channel that receives events until ctx is done or the
// broker is closed; then the channel is closed. Subscribing to a closed
// broker returns a closed channel.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	sub := &subscription[T]{ch: make(chan Event[T], b.buffer)}

	b.mu.Lock()
	if b.isClosed() {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(sub)
		case <-b.closed:
		}
	}()
	return sub.ch
}

func (b *Broker[T]) unsubscribe(sub *subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed() {
		return
	}
	i := slices.Index(b.subs, sub)
	if i < 0 {
		return
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	close(sub.ch)
}

func (b *Broker[T]) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// Publish stamps payload with an id, the next sequence number and the
// current time, then offers it to every subscriber.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.isClosed() {
		return
	}

	event := Event[T]{
		ID:        uuid.NewString(),
		Seq:       b.seq.Add(1),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close ends every subscription. Later calls do nothing.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed() {
		return
	}
	close(b.closed)
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

// Subscribers returns the number of live subscriptions.
func (b *Broker[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}
