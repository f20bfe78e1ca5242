package appfsm

import (
	"context"
	"encoding/json"

	"github.com/appdotbuild/agent/pkg/actorengine"
	"github.com/appdotbuild/agent/pkg/fsm"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/workspace"
)

// ActorAdapter bridges an actorengine.Actor into the fsm.Actor
// capability interface the hierarchical machine invokes. It owns a
// workspace lineage that persists across repeated entries into its
// state (e.g. DRAFT re-entered via FEEDBACK_DRAFT): each run clones
// from the latest winning leaf's workspace rather than from the
// pristine template, so later stages see earlier stages' output.
type ActorAdapter struct {
	actor *actorengine.Actor
	base  workspace.Workspace
}

// NewActorAdapter wraps actor, rooted initially at base.
func NewActorAdapter(actor *actorengine.Actor, base workspace.Workspace) *ActorAdapter {
	return &ActorAdapter{actor: actor, base: base}
}

// Execute implements fsm.Actor. input must be []llm.Message (the seed
// messages for this run, built by the state's InputFn).
func (a *ActorAdapter) Execute(ctx context.Context, input any) (any, error) {
	seed, _ := input.([]llm.Message)

	clone, err := a.base.Clone(ctx)
	if err != nil {
		return nil, err
	}

	result, err := a.actor.Execute(ctx, seed, clone)
	if err != nil {
		return nil, err
	}

	a.base = result.Tree.Get(result.Leaf).Data.Workspace
	return result, nil
}

// Dump implements fsm.Actor. Actor runs complete synchronously within a
// single Send call, so there is never live mid-run state to persist —
// a checkpoint is only ever taken from a review state with no pending
// invoke.
func (a *ActorAdapter) Dump() (json.RawMessage, error) {
	return json.RawMessage("{}"), nil
}

// Load implements fsm.Actor as a no-op, for the same reason Dump is.
func (a *ActorAdapter) Load(json.RawMessage) error {
	return nil
}

// Workspace returns the adapter's current workspace lineage head, used
// by the session layer to diff/read the latest files for a stage.
func (a *ActorAdapter) Workspace() workspace.Workspace {
	return a.base
}
