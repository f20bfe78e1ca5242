// Package fsm implements a generic hierarchical state machine with
// invoke-style actor bindings, entry/exit actions, and serializable
// checkpoints. It has no knowledge of any particular domain context;
// see pkg/appfsm for the concrete code-generation pipeline wiring.
package fsm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MachineContext wraps the domain-specific, serializable context a
// machine carries. Dump/Load round-trip it through JSON; action
// functions type-assert Value to the concrete context type they know
// about.
type MachineContext struct {
	Value any

	dump func(any) (json.RawMessage, error)
	load func(json.RawMessage) (any, error)
}

// NewMachineContext wraps value with the given dump/load functions,
// used for checkpointing.
func NewMachineContext(value any, dump func(any) (json.RawMessage, error), load func(json.RawMessage) (any, error)) *MachineContext {
	return &MachineContext{Value: value, dump: dump, load: load}
}

// Checkpoint is the JSON-serializable snapshot of a running machine:
// stack path, context dump, and every currently-invoked actor's dump
// keyed by its state path.
type Checkpoint struct {
	StackPath []string                   `json:"stack_path"`
	Context   json.RawMessage            `json:"context"`
	Actors    map[string]json.RawMessage `json:"actors"`
}

// Machine is a single hierarchical state machine instance. Not safe for
// concurrent Send calls — the session layer owns exactly one machine
// per request and drives it from a single goroutine at a time, per the
// concurrency model's single-threaded-cooperative-per-request rule.
type Machine struct {
	mu sync.Mutex

	root    *State
	mc      *MachineContext
	stack   StatePath // path from root's child down to the active leaf
	actors  map[string]Actor          // state-path-key -> live actor
	cancels map[string]context.CancelFunc
}

// New constructs a machine rooted at root with the given context,
// positioned at root's initial leaf. No entry actions fire for the
// initial placement — they fire starting with the first transition.
func New(root *State, mc *MachineContext) (*Machine, error) {
	path, err := initialLeafPath(root)
	if err != nil {
		return nil, err
	}
	return &Machine{
		root:    root,
		mc:      mc,
		stack:   path,
		actors:  map[string]Actor{},
		cancels: map[string]context.CancelFunc{},
	}, nil
}

func initialLeafPath(s *State) (StatePath, error) {
	var path StatePath
	cur := s
	for !cur.isLeaf() {
		next, ok := cur.Children[cur.Initial]
		if !ok {
			return nil, fmt.Errorf("fsm: state %q has no initial child %q", cur.Name, cur.Initial)
		}
		path = append(path, next.Name)
		cur = next
	}
	return path, nil
}

// StackPath returns a copy of the machine's current stack path.
func (m *Machine) StackPath() StatePath {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stack.clone()
}

// Context returns the machine's domain context value.
func (m *Machine) Context() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mc.Value
}

func stateAt(root *State, path StatePath) *State {
	cur := root
	for _, name := range path {
		next, ok := cur.Children[name]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// ancestorsInclusive returns the chain of states from root to the state
// named by path, inclusive of the leaf.
func ancestorsInclusive(root *State, path StatePath) []*State {
	chain := []*State{root}
	cur := root
	for _, name := range path {
		next := cur.Children[name]
		if next == nil {
			break
		}
		chain = append(chain, next)
		cur = next
	}
	return chain
}

// Send delivers event e to the machine, running the resulting
// transition (and any invoke it triggers) to completion. If no state on
// the current stack path handles e, Send is a no-op: state and context
// are left byte-for-byte unchanged.
func (m *Machine) Send(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send(ctx, e)
}

func (m *Machine) send(ctx context.Context, e Event) error {
	chain := ancestorsInclusive(m.root, m.stack)

	// Deepest-first: child-first tie-break.
	var matched *State
	var transition Transition
	for i := len(chain) - 1; i >= 0; i-- {
		t, ok := chain[i].On[e.Kind()]
		if ok {
			matched = chain[i]
			transition = t
			break
		}
	}
	if matched == nil {
		return nil // no match anywhere: silent no-op
	}

	newPath, err := resolveTarget(m.root, m.stack, transition.Target)
	if err != nil {
		return err
	}

	oldChain := ancestorsInclusive(m.root, m.stack)
	newChain := ancestorsInclusive(m.root, newPath)

	common := commonPrefixLen(oldChain, newChain)

	// Exit set: old chain states beyond the common prefix, deepest first.
	for i := len(oldChain) - 1; i >= common; i-- {
		s := oldChain[i]
		m.cancelInvoke(pathKey(oldChain[1 : i+1]))
		for _, action := range s.Exit {
			if err := action(ctx, m.mc, Payload(e)); err != nil {
				return fmt.Errorf("fsm: exit action of %q: %w", s.Name, err)
			}
		}
	}

	m.stack = newPath

	// Entry set: new chain states beyond the common prefix, shallowest first.
	for i := common; i < len(newChain); i++ {
		s := newChain[i]
		for _, action := range s.Entry {
			if err := action(ctx, m.mc, Payload(e)); err != nil {
				return fmt.Errorf("fsm: entry action of %q: %w", s.Name, err)
			}
		}
	}

	// Run the transition's own actions (on_done/on_error actions, or a
	// plain `on` transition's actions) after entry actions complete.
	for _, action := range transition.Actions {
		if err := action(ctx, m.mc, Payload(e)); err != nil {
			return fmt.Errorf("fsm: transition action: %w", err)
		}
	}

	// Start any invoke on newly entered states, deepest last so a leaf's
	// invoke (the common case) starts after its ancestors' entry work.
	for i := common; i < len(newChain); i++ {
		s := newChain[i]
		if s.Invoke != nil {
			if err := m.runInvoke(ctx, pathKey(newChain[1:i+1]), s.Invoke); err != nil {
				return err
			}
		}
	}

	return nil
}

func commonPrefixLen(a, b []*State) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func pathKey(states []*State) string {
	key := ""
	for i, s := range states {
		if i > 0 {
			key += "/"
		}
		key += s.Name
	}
	return key
}

// resolveTarget resolves a transition's target path. A target is always
// interpreted relative to the machine root unless empty, in which case
// the current path is kept (self-loop with no state change, still runs
// actions). Target paths must resolve to a leaf.
func resolveTarget(root *State, current StatePath, target StatePath) (StatePath, error) {
	if len(target) == 0 {
		return current.clone(), nil
	}
	s := stateAt(root, target)
	if s == nil {
		return nil, fmt.Errorf("fsm: unresolvable target path %v", target)
	}
	path := target.clone()
	for !s.isLeaf() {
		next, ok := s.Children[s.Initial]
		if !ok {
			return nil, fmt.Errorf("fsm: state %q has no initial child %q", s.Name, s.Initial)
		}
		path = append(path, next.Name)
		s = next
	}
	return path, nil
}

// runInvoke launches an invoked actor. It blocks the calling Send until
// the actor completes (or ctx is cancelled), then applies the resulting
// on_done/on_error transition, chaining into further invokes as needed
// — this is how one Send call "runs to the next natural pause" (a
// review state awaiting CONFIRM/FEEDBACK, or a terminal state).
func (m *Machine) runInvoke(parentCtx context.Context, stateKey string, inv *Invoke) error {
	invokeCtx, cancel := context.WithCancel(parentCtx)
	m.cancels[stateKey] = cancel
	defer func() {
		// Clear the cancel handle for stateKey; an exit of the state
		// may already have removed it.
		if m.cancels[stateKey] != nil {
			delete(m.cancels, stateKey)
		}
	}()

	input := inv.InputFn(m.mc)

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := inv.Src.Execute(invokeCtx, input)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-invokeCtx.Done():
		// The state was exited (or the request was cancelled) before the
		// actor finished: no on_done/on_error fires for it.
		<-done // drain to avoid leaking the goroutine
		return invokeCtx.Err()
	case o := <-done:
		m.actors[stateKey] = inv.Src
		if invokeCtx.Err() != nil {
			// Raced with an exit that happened between select cases.
			return nil
		}
		if o.err != nil {
			return m.applyTransition(parentCtx, inv.OnError, o.err)
		}
		return m.applyOutcome(parentCtx, inv, o.result)
	}
}

// applyOutcome runs the invoke's on_done transition directly (bypassing
// the event-kind lookup, since on_done/on_error are per-invoke, not
// registered in a state's `on` table) using the same exit/entry/invoke
// machinery as send.
func (m *Machine) applyOutcome(ctx context.Context, inv *Invoke, result any) error {
	return m.applyTransition(ctx, inv.OnDone, result)
}

func (m *Machine) applyTransition(ctx context.Context, t Transition, payload any) error {
	newPath, err := resolveTarget(m.root, m.stack, t.Target)
	if err != nil {
		return err
	}

	oldChain := ancestorsInclusive(m.root, m.stack)
	newChain := ancestorsInclusive(m.root, newPath)
	common := commonPrefixLen(oldChain, newChain)

	for i := len(oldChain) - 1; i >= common; i-- {
		m.cancelInvoke(pathKey(oldChain[1 : i+1]))
		for _, action := range oldChain[i].Exit {
			if err := action(ctx, m.mc, payload); err != nil {
				return err
			}
		}
	}

	m.stack = newPath

	for i := common; i < len(newChain); i++ {
		for _, action := range newChain[i].Entry {
			if err := action(ctx, m.mc, payload); err != nil {
				return err
			}
		}
	}

	for _, action := range t.Actions {
		if err := action(ctx, m.mc, payload); err != nil {
			return err
		}
	}

	for i := common; i < len(newChain); i++ {
		s := newChain[i]
		if s.Invoke != nil {
			if err := m.runInvoke(ctx, pathKey(newChain[1:i+1]), s.Invoke); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Machine) cancelInvoke(stateKey string) {
	if cancel, ok := m.cancels[stateKey]; ok {
		cancel()
		delete(m.cancels, stateKey)
	}
}

// Dump serializes the machine's current checkpoint.
func (m *Machine) Dump() (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dump()
}

func (m *Machine) dump() (Checkpoint, error) {
	ctxDump, err := m.mc.dump(m.mc.Value)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("fsm: dump context: %w", err)
	}

	actors := make(map[string]json.RawMessage, len(m.actors))
	for key, actor := range m.actors {
		d, err := actor.Dump()
		if err != nil {
			return Checkpoint{}, fmt.Errorf("fsm: dump actor %q: %w", key, err)
		}
		actors[key] = d
	}

	return Checkpoint{
		StackPath: append([]string{}, m.stack...),
		Context:   ctxDump,
		Actors:    actors,
	}, nil
}

// Load restores a machine's position and context from a checkpoint.
// Entry actions are deliberately NOT replayed — loading and resuming
// must be observationally equivalent to having reached the same state
// live. actorFactory recreates the live Actor for a given state-path
// key (the Registry in pkg/appfsm implements this).
func Load(root *State, mc *MachineContext, cp Checkpoint, actorFactory func(stateKey string) (Actor, error)) (*Machine, error) {
	value, err := mc.load(cp.Context)
	if err != nil {
		return nil, fmt.Errorf("fsm: load context: %w", err)
	}
	mc.Value = value

	m := &Machine{
		root:    root,
		mc:      mc,
		stack:   StatePath(append([]string{}, cp.StackPath...)),
		actors:  map[string]Actor{},
		cancels: map[string]context.CancelFunc{},
	}

	for key, dump := range cp.Actors {
		actor, err := actorFactory(key)
		if err != nil {
			return nil, fmt.Errorf("fsm: recreate actor %q: %w", key, err)
		}
		if err := actor.Load(dump); err != nil {
			return nil, fmt.Errorf("fsm: load actor %q: %w", key, err)
		}
		m.actors[key] = actor
	}

	return m, nil
}
