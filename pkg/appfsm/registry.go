package appfsm

import "github.com/appdotbuild/agent/pkg/fsm"

// NewRegistry builds the fsm.Registry mapping each invoke-bearing
// state's path key to its already-constructed adapter. A workspace's
// live container state is never part of a checkpoint (see DESIGN.md);
// on resume the session reconstructs fresh workspaces, replays
// context.server_files/frontend_files onto them, then builds a new
// Actors bundle and this registry before calling fsm.Load — so the
// registry's job is only to route a dumped state-path key back to the
// adapter that now owns the replayed workspace, not to fabricate one
// from scratch.
func NewRegistry(actors Actors) *fsm.Registry {
	r := fsm.NewRegistry()
	r.Register("DRAFT", func() (fsm.Actor, error) { return actors.Draft, nil })
	r.Register("HANDLERS", func() (fsm.Actor, error) { return actors.Handlers, nil })
	r.Register("INDEX", func() (fsm.Actor, error) { return actors.Index, nil })
	r.Register("FRONTEND", func() (fsm.Actor, error) { return actors.Frontend, nil })
	return r
}
