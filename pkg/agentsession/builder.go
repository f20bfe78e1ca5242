package agentsession

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appdotbuild/agent/pkg/appfsm"
	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/fsm"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/ratelimit"
	"github.com/appdotbuild/agent/pkg/toolprocessor"
	"github.com/appdotbuild/agent/pkg/workspace"
)

// WorkspaceFactory provisions the pair of workspaces one application's
// server and frontend actors run against.
type WorkspaceFactory interface {
	NewServerWorkspace(ctx context.Context) (workspace.Workspace, error)
	NewFrontendWorkspace(ctx context.Context) (workspace.Workspace, error)
}

// AppBuilder constructs the toolprocessor.App an AgentSession drives,
// split out from AgentSession itself so tests can substitute a stub App
// without standing up real workspaces or actors (see
// AppFSMBuilder for the production wiring).
type AppBuilder interface {
	// New builds a fresh, unstarted App.
	New(ctx context.Context) (toolprocessor.App, error)

	// Restore rebuilds an App from a previously dumped checkpoint.
	Restore(ctx context.Context, cp fsm.Checkpoint) (toolprocessor.App, error)
}

// AppFSMBuilder is the production AppBuilder: it provisions a fresh
// workspace pair for every App it builds, wiring them into the five
// concrete actors via appfsm.NewActors. On Restore, it replays the
// checkpointed context's server/frontend files onto the freshly
// provisioned workspaces before rebuilding the actors — a Workspace is
// a live container and is never itself part of a checkpoint (see
// pkg/appfsm.NewRegistry's doc comment for the same design point from
// the registry's side).
type AppFSMBuilder struct {
	Client     llm.AsyncLLM
	Workspaces WorkspaceFactory

	// Index backs retrieval-augmented prompting across all five actors.
	// Nil is fine (tests, or a session with nothing indexed yet).
	Index *codeindex.Index
	// Limiter throttles every actor's LLM calls under beam-search
	// fanout. Nil disables throttling.
	Limiter *ratelimit.Limiter
}

func (b *AppFSMBuilder) New(ctx context.Context) (toolprocessor.App, error) {
	serverWS, frontendWS, err := b.provision(ctx)
	if err != nil {
		return nil, err
	}
	actors := appfsm.NewActors(b.Client, serverWS, frontendWS, nil, nil, b.Index, b.Limiter)
	return toolprocessor.NewAppFSM(actors)
}

func (b *AppFSMBuilder) Restore(ctx context.Context, cp fsm.Checkpoint) (toolprocessor.App, error) {
	serverWS, frontendWS, err := b.provision(ctx)
	if err != nil {
		return nil, err
	}

	var prior appfsm.ApplicationContext
	if err := json.Unmarshal(cp.Context, &prior); err != nil {
		return nil, fmt.Errorf("agentsession: decode checkpoint context: %w", err)
	}
	if err := replayFiles(ctx, serverWS, prior.ServerFiles); err != nil {
		return nil, fmt.Errorf("agentsession: replay server files: %w", err)
	}
	if err := replayFiles(ctx, frontendWS, prior.FrontendFiles); err != nil {
		return nil, fmt.Errorf("agentsession: replay frontend files: %w", err)
	}

	actors := appfsm.NewActors(b.Client, serverWS, frontendWS, nil, nil, b.Index, b.Limiter)
	return toolprocessor.RestoreAppFSM(actors, cp)
}

func (b *AppFSMBuilder) provision(ctx context.Context) (workspace.Workspace, workspace.Workspace, error) {
	serverWS, err := b.Workspaces.NewServerWorkspace(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("agentsession: provision server workspace: %w", err)
	}
	frontendWS, err := b.Workspaces.NewFrontendWorkspace(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("agentsession: provision frontend workspace: %w", err)
	}
	return serverWS, frontendWS, nil
}

func replayFiles(ctx context.Context, ws workspace.Workspace, files map[string]string) error {
	for path, content := range files {
		if err := ws.WriteFile(ctx, path, content); err != nil {
			return err
		}
	}
	return nil
}
