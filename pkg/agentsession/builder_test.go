package agentsession

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/appdotbuild/agent/pkg/appfsm"
	"github.com/appdotbuild/agent/pkg/fsm"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWorkspace struct {
	files map[string]string
}

func newMemWorkspace() *memWorkspace { return &memWorkspace{files: map[string]string{}} }

func (w *memWorkspace) Clone(ctx context.Context) (workspace.Workspace, error) {
	clone := newMemWorkspace()
	for k, v := range w.files {
		clone.files[k] = v
	}
	return clone, nil
}
func (w *memWorkspace) ReadFile(ctx context.Context, path string) (string, error) {
	return w.files[path], nil
}
func (w *memWorkspace) WriteFile(ctx context.Context, path, content string) error {
	w.files[path] = content
	return nil
}
func (w *memWorkspace) Exec(ctx context.Context, cmd string) (workspace.ExecResult, error) {
	return workspace.ExecResult{ExitCode: 0}, nil
}
func (w *memWorkspace) Ls(ctx context.Context, dir string) ([]string, error) {
	var out []string
	for p := range w.files {
		out = append(out, p)
	}
	return out, nil
}
func (w *memWorkspace) Diff(ctx context.Context) (string, error) { return "", nil }
func (w *memWorkspace) Close(ctx context.Context) error          { return nil }

type memWorkspaceFactory struct {
	server, frontend *memWorkspace
}

func newMemWorkspaceFactory() *memWorkspaceFactory {
	return &memWorkspaceFactory{server: newMemWorkspace(), frontend: newMemWorkspace()}
}

func (f *memWorkspaceFactory) NewServerWorkspace(ctx context.Context) (workspace.Workspace, error) {
	return f.server, nil
}
func (f *memWorkspaceFactory) NewFrontendWorkspace(ctx context.Context) (workspace.Workspace, error) {
	return f.frontend, nil
}

func TestAppFSMBuilder_NewProducesUnstartedApp(t *testing.T) {
	builder := &AppFSMBuilder{Client: &scriptedLLM{}, Workspaces: newMemWorkspaceFactory()}

	app, err := builder.New(context.Background())
	require.NoError(t, err)
	assert.False(t, app.IsActive())
	assert.Equal(t, "IDLE", app.CurrentState())
}

func TestAppFSMBuilder_RestoreReplaysCheckpointFilesOntoFreshWorkspace(t *testing.T) {
	factory := newMemWorkspaceFactory()
	builder := &AppFSMBuilder{Client: &scriptedLLM{}, Workspaces: factory}

	prior := appfsm.NewApplicationContext("a todo app")
	prior.ServerFiles["main.go"] = "package main"
	rawCtx, err := appfsm.Dump(prior)
	require.NoError(t, err)

	cp := fsm.Checkpoint{
		StackPath: []string{"REVIEW_DRAFT"},
		Context:   rawCtx,
		Actors:    map[string]json.RawMessage{},
	}

	app, err := builder.Restore(context.Background(), cp)
	require.NoError(t, err)
	assert.Equal(t, "REVIEW_DRAFT", app.CurrentState())
	assert.Equal(t, "package main", factory.server.files["main.go"])

	ctx := app.Context()
	assert.Equal(t, "a todo app", ctx.UserPrompt)
	assert.Equal(t, "package main", ctx.ServerFiles["main.go"])
}

func TestAppFSMBuilder_ProvisionErrorPropagates(t *testing.T) {
	builder := &AppFSMBuilder{Client: &scriptedLLM{}, Workspaces: erroringFactory{}}

	_, err := builder.New(context.Background())
	assert.Error(t, err)
}

type erroringFactory struct{}

func (erroringFactory) NewServerWorkspace(ctx context.Context) (workspace.Workspace, error) {
	return nil, assert.AnError
}
func (erroringFactory) NewFrontendWorkspace(ctx context.Context) (workspace.Workspace, error) {
	return nil, assert.AnError
}

var _ llm.AsyncLLM = (*scriptedLLM)(nil)
