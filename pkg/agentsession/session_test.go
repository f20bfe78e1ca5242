package agentsession

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/appdotbuild/agent/pkg/appfsm"
	"github.com/appdotbuild/agent/pkg/fsm"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/toolprocessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeApp is a hand-driven toolprocessor.App stub, mirroring the style
// of toolprocessor's own test fakes: a small state machine advanced
// directly by test assertions rather than a real fsm.Machine.
type fakeApp struct {
	state     string
	ctx       *appfsm.ApplicationContext
	forceFail bool
	feedback  []string
}

func newFakeApp() *fakeApp {
	return &fakeApp{state: "IDLE", ctx: appfsm.NewApplicationContext("")}
}

func (a *fakeApp) IsActive() bool                              { return a.state != "IDLE" }
func (a *fakeApp) CurrentState() string                        { return a.state }
func (a *fakeApp) Context() *appfsm.ApplicationContext          { return a.ctx }
func (a *fakeApp) IsTerminalCompletion() bool                   { return a.state == "COMPLETE" }
func (a *fakeApp) IsFailed() bool                               { return a.state == "FAILURE" }
func (a *fakeApp) Dump() (fsm.Checkpoint, error) {
	raw, _ := appfsm.Dump(a.ctx)
	return fsm.Checkpoint{StackPath: []string{a.state}, Context: raw}, nil
}

func (a *fakeApp) Start(ctx context.Context, appDescription string) error {
	a.ctx.UserPrompt = appDescription
	a.ctx.ServerFiles["main.go"] = "v1"
	a.state = "REVIEW_DRAFT"
	return nil
}

func (a *fakeApp) Confirm(ctx context.Context) error {
	if a.forceFail {
		msg := "actor exploded"
		a.ctx.Error = &msg
		a.state = "FAILURE"
		return nil
	}
	a.ctx.ServerFiles["handlers.go"] = "v1"
	a.state = "COMPLETE"
	return nil
}

func (a *fakeApp) ProvideFeedback(ctx context.Context, feedback, componentName string) error {
	a.feedback = append(a.feedback, feedback)
	return nil
}

func (a *fakeApp) Complete(ctx context.Context) (*appfsm.ApplicationContext, error) {
	return a.ctx, nil
}

// fakeAppBuilder hands back a preconstructed fakeApp, recording which
// of New/Restore was used.
type fakeAppBuilder struct {
	app           *fakeApp
	newCalled     bool
	restoreCalled bool
	restoredCP    fsm.Checkpoint
}

func (b *fakeAppBuilder) New(ctx context.Context) (toolprocessor.App, error) {
	b.newCalled = true
	return b.app, nil
}

func (b *fakeAppBuilder) Restore(ctx context.Context, cp fsm.Checkpoint) (toolprocessor.App, error) {
	b.restoreCalled = true
	b.restoredCP = cp
	return b.app, nil
}

type scriptedLLM struct {
	completions []llm.Completion
	i           int
}

func (s *scriptedLLM) Completion(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (llm.Completion, error) {
	c := s.completions[s.i]
	if s.i < len(s.completions)-1 {
		s.i++
	}
	return c, nil
}

func toolUseCompletion(name string, input map[string]any) llm.Completion {
	return llm.Completion{
		Content:    []llm.ContentBlock{llm.ToolUse{ID: "1", Name: name, Input: input}},
		StopReason: llm.StopToolUse,
	}
}

type erroringLLM struct{ err error }

func (e *erroringLLM) Completion(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (llm.Completion, error) {
	return llm.Completion{}, e.err
}

type fakeNames struct{}

func (fakeNames) GenerateAppName(ctx context.Context, userPrompt string) (string, error) {
	return "todo-app", nil
}
func (fakeNames) GenerateCommitMessage(ctx context.Context, diff string) (string, error) {
	return "update generated app", nil
}

func collect(t *testing.T, out <-chan Event) []Event {
	t.Helper()
	var events []Event
	for e := range out {
		events = append(events, e)
	}
	return events
}

func TestRun_FreshRequestEmitsReviewThenCompletion(t *testing.T) {
	app := newFakeApp()
	builder := &fakeAppBuilder{app: app}
	snapshots, err := NewSnapshotStore("")
	require.NoError(t, err)

	client := &scriptedLLM{completions: []llm.Completion{
		toolUseCompletion("start_fsm", map[string]any{"app_description": "a todo app"}),
		toolUseCompletion("confirm_state", nil),
	}}

	s := New("app-1", "trace-1", client, builder, fakeNames{}, snapshots)
	events := collect(t, s.Run(context.Background(), AgentRequest{TraceID: "trace-1", AllFiles: map[string]string{}}))

	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, StatusRunning, first.Status)
	assert.Equal(t, KindReviewResult, first.Message.Kind)
	require.NotNil(t, first.Message.AppName)
	assert.Equal(t, "todo-app", *first.Message.AppName)
	require.NotNil(t, first.Message.CommitMessage)
	assert.Equal(t, "Initial commit", *first.Message.CommitMessage)
	require.NotNil(t, first.Message.UnifiedDiff)
	assert.Contains(t, *first.Message.UnifiedDiff, "main.go")

	last := events[1]
	assert.Equal(t, StatusIdle, last.Status)
	assert.Equal(t, KindReviewResult, last.Message.Kind)
	require.NotNil(t, last.Message.CommitMessage)
	assert.Equal(t, "update generated app", *last.Message.CommitMessage)

	assert.True(t, builder.newCalled)
	assert.False(t, builder.restoreCalled)

	_, ok := snapshots.Get("trace-1", phaseEnter)
	assert.True(t, ok)
	_, ok = snapshots.Get("trace-1", phaseExit)
	assert.True(t, ok)
}

func TestRun_NoToolCallIsRefinementRequest(t *testing.T) {
	app := newFakeApp()
	builder := &fakeAppBuilder{app: app}
	snapshots, err := NewSnapshotStore("")
	require.NoError(t, err)

	client := &scriptedLLM{completions: []llm.Completion{
		{Content: []llm.ContentBlock{llm.TextRaw{Text: "not sure what to do"}}, StopReason: llm.StopEndTurn},
	}}

	s := New("app-1", "trace-2", client, builder, fakeNames{}, snapshots)
	events := collect(t, s.Run(context.Background(), AgentRequest{TraceID: "trace-2"}))

	require.Len(t, events, 1)
	assert.Equal(t, StatusIdle, events[0].Status)
	assert.Equal(t, KindRefinementRequest, events[0].Message.Kind)
}

func TestRun_FSMFailureEmitsRuntimeError(t *testing.T) {
	app := newFakeApp()
	app.state = "REVIEW_DRAFT"
	app.forceFail = true
	builder := &fakeAppBuilder{app: app}
	snapshots, err := NewSnapshotStore("")
	require.NoError(t, err)

	client := &scriptedLLM{completions: []llm.Completion{
		toolUseCompletion("confirm_state", nil),
	}}

	s := New("app-1", "trace-3", client, builder, fakeNames{}, snapshots)
	events := collect(t, s.Run(context.Background(), AgentRequest{TraceID: "trace-3"}))

	require.Len(t, events, 1)
	assert.Equal(t, StatusIdle, events[0].Status)
	assert.Equal(t, KindRuntimeError, events[0].Message.Kind)
	assert.Contains(t, events[0].Message.Content, "actor exploded")
}

func TestRun_LLMErrorEmitsRuntimeError(t *testing.T) {
	app := newFakeApp()
	builder := &fakeAppBuilder{app: app}
	snapshots, err := NewSnapshotStore("")
	require.NoError(t, err)

	s := New("app-1", "trace-4", &erroringLLM{err: assert.AnError}, builder, fakeNames{}, snapshots)
	events := collect(t, s.Run(context.Background(), AgentRequest{TraceID: "trace-4"}))

	require.Len(t, events, 1)
	assert.Equal(t, KindRuntimeError, events[0].Message.Kind)
}

func TestRun_AgentStateRoutesThroughBuilderRestore(t *testing.T) {
	app := newFakeApp()
	app.state = "REVIEW_HANDLERS"
	app.ctx.ServerFiles["main.go"] = "v1"
	builder := &fakeAppBuilder{app: app}
	snapshots, err := NewSnapshotStore("")
	require.NoError(t, err)

	client := &scriptedLLM{completions: []llm.Completion{
		{Content: []llm.ContentBlock{llm.TextRaw{Text: "pausing here"}}, StopReason: llm.StopEndTurn},
	}}

	priorCtx := appfsm.NewApplicationContext("a todo app")
	priorCtx.ServerFiles["main.go"] = "v1"
	rawCtx, err := appfsm.Dump(priorCtx)
	require.NoError(t, err)
	cp := fsm.Checkpoint{StackPath: []string{"REVIEW_HANDLERS"}, Context: rawCtx, Actors: map[string]json.RawMessage{}}

	s := New("app-1", "trace-5", client, builder, fakeNames{}, snapshots)
	req := AgentRequest{TraceID: "trace-5", AgentState: &AgentState{FSMState: cp}}
	events := collect(t, s.Run(context.Background(), req))

	require.Len(t, events, 1)
	assert.True(t, builder.restoreCalled)
	assert.False(t, builder.newCalled)
	assert.Equal(t, []string{"REVIEW_HANDLERS"}, builder.restoredCP.StackPath)
}
