// Package pubsub fans events out to subscribers over buffered channels.
// The logger publishes its entries through it and the devtools sink
// publishes store events.
package pubsub

import "time"

// EventType names a published event.
type EventType string

const (
	// LogEntryEvent carries one formatted log line.
	LogEntryEvent EventType = "log:entry"

	// Store events, named like the devtools events that produce them.
	StoreInitEvent     EventType = "store:init"
	StoreMutationEvent EventType = "store:mutation"
	StoreErrorEvent    EventType = "store:error"
)

// Event is one delivery. Seq counts publishes on the broker starting at 1,
// so a gap tells a subscriber it missed events.
type Event[T any] struct {
	ID        string
	Seq       uint64
	Type      EventType
	Payload   T
	Timestamp time.Time
}
