package fsm

import (
	"context"
	"encoding/json"
)

// StatePath is a sequence of state names from (but not including) the
// root down to a particular state; the stack path is always a leaf's
// StatePath prefixed implicitly by the root.
type StatePath []string

// Equal reports whether p and other name the same path.
func (p StatePath) Equal(other StatePath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

func (p StatePath) clone() StatePath {
	out := make(StatePath, len(p))
	copy(out, p)
	return out
}

// Action is a pure function of (context, payload) with allowed async
// side effects (the context it mutates is exclusive to one machine
// instance, so no external synchronization is required).
type Action func(ctx context.Context, mc *MachineContext, payload any) error

// Transition names the target state path an event resolves to, plus
// the actions to run once the transition's entry set has been entered.
// Target is always resolved from the machine's root (see
// resolveTarget); an empty Target is a self-loop that re-runs
// the transition's actions without changing state.
type Transition struct {
	Target  StatePath
	Actions []Action
}

// Actor is the pluggable capability an invoke descriptor launches:
// execute the underlying work, and support checkpoint dump/load so the
// machine can persist and restore it without understanding its
// internals.
type Actor interface {
	// Execute runs the actor to completion or until ctx is cancelled.
	Execute(ctx context.Context, input any) (result any, err error)

	// Dump serializes the actor's resumable state, if any.
	Dump() (json.RawMessage, error)

	// Load restores state previously produced by Dump.
	Load(data json.RawMessage) error
}

// Invoke declares that entering a state launches src concurrently,
// feeding it input computed by InputFn, and routes its outcome through
// OnDone or OnError.
type Invoke struct {
	Src     Actor
	InputFn func(mc *MachineContext) any
	OnDone  Transition
	OnError Transition
}

// State is a node of the hierarchical state machine. A State with no
// Children is a leaf; a State with Children must name one as Initial.
type State struct {
	Name string

	Entry  []Action
	Exit   []Action
	Invoke *Invoke

	// On maps an event kind to the transition it causes when this state
	// (or, if unmatched, an ancestor) is active. Deeper states take
	// priority (child-first tie-break).
	On map[EventKind]Transition

	Children map[string]*State
	Initial  string
}

func (s *State) isLeaf() bool {
	return len(s.Children) == 0
}
