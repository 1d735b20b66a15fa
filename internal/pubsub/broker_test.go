package pubsub_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/strata/internal/pubsub"
	"github.com/zjrosen/strata/pkg/store"
)

var errOutOfStock = errors.New("out of stock")

func shopDefinition() *store.Definition {
	return &store.Definition{
		State: store.StateFunc(func() store.State { return store.State{"stock": 2} }),
		Mutations: map[string]store.MutationHandler{
			"take": func(s store.State, _ any) { s["stock"] = s["stock"].(int) - 1 },
		},
		Actions: map[string]store.ActionHandler{
			"buy": func(ac *store.ActionContext, _ any) (any, error) {
				if ac.State()["stock"].(int) == 0 {
					return nil, errOutOfStock
				}
				return nil, ac.Commit("take", nil)
			},
		},
	}
}

func devtoolsStore(t *testing.T, broker *pubsub.Broker[any]) *store.Store {
	t.Helper()
	s, err := store.New(shopDefinition(), store.WithDevtools(pubsub.NewEventSink(broker)))
	require.NoError(t, err)
	return s
}

func receive(t *testing.T, ch <-chan pubsub.Event[any]) pubsub.Event[any] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed early")
		return ev
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for event")
		return pubsub.Event[any]{}
	}
}

func requireClosed(t *testing.T, ch <-chan pubsub.Event[any]) {
	t.Helper()
	select {
	case _, ok := <-ch:
		require.False(t, ok, "subscription should be closed")
	case <-time.After(time.Second):
		require.FailNow(t, "subscription was not closed")
	}
}

func TestBroker_DeliversStoreEventsInPublishOrder(t *testing.T) {
	broker := pubsub.NewBroker[any]()
	defer broker.Close()
	first := broker.Subscribe(context.Background())
	second := broker.Subscribe(context.Background())

	s := devtoolsStore(t, broker)
	require.NoError(t, s.Commit(context.Background(), "take", nil))

	for _, ch := range []<-chan pubsub.Event[any]{first, second} {
		init := receive(t, ch)
		require.Equal(t, pubsub.StoreInitEvent, init.Type)
		require.Equal(t, uint64(1), init.Seq)
		require.Equal(t, store.State{"stock": 2}, init.Payload)

		mutation := receive(t, ch)
		require.Equal(t, pubsub.StoreMutationEvent, mutation.Type)
		require.Equal(t, uint64(2), mutation.Seq)
		require.NotEqual(t, init.ID, mutation.ID)
		require.False(t, mutation.Timestamp.Before(init.Timestamp))

		record := mutation.Payload.(store.MutationRecord)
		require.Equal(t, "take", record.Mutation.Type)
		require.Equal(t, 1, record.State["stock"])
	}
}

func TestBroker_RejectedActionsArriveAsErrorEvents(t *testing.T) {
	broker := pubsub.NewBroker[any]()
	defer broker.Close()
	ch := broker.Subscribe(context.Background())

	s := devtoolsStore(t, broker)
	s.ReplaceState(store.State{"stock": 0})

	err := s.Dispatch(context.Background(), "buy", nil).Err()
	require.ErrorIs(t, err, errOutOfStock)

	require.Equal(t, pubsub.StoreInitEvent, receive(t, ch).Type)
	failure := receive(t, ch)
	require.Equal(t, pubsub.StoreErrorEvent, failure.Type)
	require.ErrorIs(t, failure.Payload.(error), errOutOfStock)
}

func TestBroker_SlowSubscriberNeverBlocksCommits(t *testing.T) {
	broker := pubsub.NewBrokerWithBuffer[any](1)
	defer broker.Close()
	ch := broker.Subscribe(context.Background())

	s := devtoolsStore(t, broker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 3 {
			_ = s.Commit(context.Background(), "take", nil)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "commit blocked on a full subscriber")
	}

	require.Equal(t, int64(3), broker.Dropped())
	kept := receive(t, ch)
	require.Equal(t, pubsub.StoreInitEvent, kept.Type)

	require.NoError(t, s.Commit(context.Background(), "take", nil))
	next := receive(t, ch)
	require.Equal(t, uint64(5), next.Seq, "the gap shows three missed events")
}

func TestBroker_CancelEndsOneSubscription(t *testing.T) {
	broker := pubsub.NewBroker[any]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := broker.Subscribe(ctx)
	kept := broker.Subscribe(context.Background())
	require.Equal(t, 2, broker.Subscribers())

	cancel()
	requireClosed(t, cancelled)
	require.Eventually(t, func() bool { return broker.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	s := devtoolsStore(t, broker)
	require.NoError(t, s.Commit(context.Background(), "take", nil))
	require.Equal(t, pubsub.StoreInitEvent, receive(t, kept).Type)
	require.Equal(t, pubsub.StoreMutationEvent, receive(t, kept).Type)
}

func TestBroker_CloseEndsEverySubscription(t *testing.T) {
	broker := pubsub.NewBroker[any]()
	first := broker.Subscribe(context.Background())
	second := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	requireClosed(t, first)
	requireClosed(t, second)
	require.Zero(t, broker.Subscribers())
	requireClosed(t, broker.Subscribe(context.Background()))

	s := devtoolsStore(t, broker)
	require.NotPanics(t, func() {
		require.NoError(t, s.Commit(context.Background(), "take", nil))
	})
}

func TestEventSink_NilSafe(t *testing.T) {
	var sink *pubsub.EventSink
	require.NotPanics(t, func() { sink.Emit(string(pubsub.StoreInitEvent), nil) })
}
