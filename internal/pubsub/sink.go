package pubsub

// EventSink adapts a Broker[any] to the store's devtools sink contract,
// Emit(event, payload). Every emitted event is published with its name as
// the event type.
type EventSink struct {
	broker *Broker[any]
}

// NewEventSink wraps broker.
func NewEventSink(broker *Broker[any]) *EventSink {
	return &EventSink{broker: broker}
}

// Emit publishes payload under the event name.
func (s *EventSink) Emit(event string, payload any) {
	if s == nil || s.broker == nil {
		return
	}
	s.broker.Publish(EventType(event), payload)
}

// Broker returns the underlying broker so callers can subscribe.
func (s *EventSink) Broker() *Broker[any] {
	return s.broker
}
