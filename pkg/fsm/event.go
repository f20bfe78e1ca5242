package fsm

// EventKind is the closed tag of an Event variant. Matching on Kind
// models the sum-typed events called for by this codebase's design
// notes, without resorting to dynamic string dispatch scattered through
// the transition logic — the `on` table is keyed by Kind.
type EventKind string

// Event is a message sent to a Machine. Concrete event types carry
// whatever payload their kind needs (e.g. feedback text); the
// transition table only inspects Kind.
type Event interface {
	Kind() EventKind
}

// Payload returns the event's feedback/argument payload for use by
// entry/exit/on_done actions, if the event carries one. Returns nil for
// events with no payload.
func Payload(e Event) any {
	if p, ok := e.(interface{ Payload() any }); ok {
		return p.Payload()
	}
	return nil
}
