package soma

import (
	"time"
)

// EventKind identifies the type of event emitted by an organelle.
type EventKind string

const (
	// EventInitialized is emitted when an organelle receives Init.
	EventInitialized EventKind = "initialized"

	// EventStarted is emitted when an organelle fans Start out to its
	// children.
	EventStarted EventKind = "started"

	// EventSignalDelivered is emitted when a payload is delivered to a
	// soma inside the organelle.
	EventSignalDelivered EventKind = "signal_delivered"

	// EventImpulseForwarded is emitted when a payload leaves the
	// organelle for its enclosing scope.
	EventImpulseForwarded EventKind = "impulse_forwarded"

	// EventSomaFailed is emitted when a soma's update returns an error.
	EventSomaFailed EventKind = "soma_failed"

	// EventProbe is emitted when the organelle answers a Probe.
	EventProbe EventKind = "probe"

	// EventStopped is emitted when the organelle forwards Stop upward or
	// its top-level loop exits cleanly.
	EventStopped EventKind = "stopped"

	// EventProtocolViolation is emitted when an impulse variant appears
	// at a site that cannot legally receive it.
	EventProtocolViolation EventKind = "protocol_violation"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured record of what happened inside an organelle.
// Events should be kept small; they are fanned out synchronously to the
// organelle's handler and may additionally be persisted via journal.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// RunID identifies the organelle instance run, minted at Init.
	RunID string

	// Label is the organelle's diagnostic label.
	Label string

	// Seq is a per-run sequence number, assigned by the journal Recorder
	// before an event is persisted; zero when unset.
	Seq uint64

	// Node is the soma the event concerns, when any.
	Node Handle

	// Src and Dest carry the endpoints of routed traffic.
	Src  Handle
	Dest Handle

	// Impulse is the kind of impulse the event concerns, when any.
	Impulse ImpulseKind

	// Time is when the event occurred.
	Time time.Time

	// Err is set on failure events.
	Err error
}

// EventHandler is a function type for handling events. Implementations
// can log, store, or forward events as needed. Handlers run on routing
// and drive tasks; they must not block.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// ChannelEventHandler returns a handler that sends events to a channel.
// Events are dropped if the channel is full.
func ChannelEventHandler(ch chan<- Event) EventHandler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full
		}
	}
}
