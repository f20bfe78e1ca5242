package fsm

import "sync"

// ActorFactory returns the Actor for a named state-path key, so Load
// has an Actor to apply a checkpoint's dumped state to. Adapted from the teacher's
// trigger/tag registry (pkg/agent/registry.go), narrowed to the single
// lookup this machine needs: state-path -> constructor.
type ActorFactory func() (Actor, error)

// Registry is a map of state-path key to ActorFactory. Load asks it
// for the Actor under each key a checkpoint dumped.
type Registry struct {
	mu   sync.RWMutex
	ctor map[string]ActorFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctor: map[string]ActorFactory{}}
}

// Register associates stateKey with a constructor. Re-registering the
// same key replaces the previous constructor.
func (r *Registry) Register(stateKey string, factory ActorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctor[stateKey] = factory
}

// New returns the actor that stateKey's factory produces.
func (r *Registry) New(stateKey string) (Actor, error) {
	r.mu.RLock()
	factory, ok := r.ctor[stateKey]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownActorError{StateKey: stateKey}
	}
	return factory()
}

// UnknownActorError is returned when no constructor is registered for a
// checkpoint's actor state-path key.
type UnknownActorError struct {
	StateKey string
}

func (e *UnknownActorError) Error() string {
	return "fsm: no actor registered for state " + e.StateKey
}
