package toolprocessor

import (
	"context"
	"errors"
	"testing"

	"github.com/appdotbuild/agent/pkg/appfsm"
	"github.com/appdotbuild/agent/pkg/fsm"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeApp is a minimal App stub driven directly by test assertions,
// without a real fsm.Machine underneath.
type fakeApp struct {
	state      string
	ctx        *appfsm.ApplicationContext
	startErr   error
	confirmErr error
	feedback   []string
	failed     bool
}

func newFakeApp() *fakeApp {
	return &fakeApp{state: "IDLE", ctx: appfsm.NewApplicationContext("")}
}

func (a *fakeApp) IsActive() bool      { return a.state != "IDLE" }
func (a *fakeApp) CurrentState() string { return a.state }
func (a *fakeApp) Context() *appfsm.ApplicationContext { return a.ctx }
func (a *fakeApp) IsTerminalCompletion() bool { return a.state == "COMPLETE" }
func (a *fakeApp) IsFailed() bool             { return a.failed }
func (a *fakeApp) Dump() (fsm.Checkpoint, error) {
	return fsm.Checkpoint{StackPath: []string{a.state}}, nil
}

func (a *fakeApp) Start(ctx context.Context, appDescription string) error {
	if a.startErr != nil {
		return a.startErr
	}
	a.ctx.UserPrompt = appDescription
	a.state = "REVIEW_DRAFT"
	return nil
}

func (a *fakeApp) Confirm(ctx context.Context) error {
	if a.confirmErr != nil {
		return a.confirmErr
	}
	a.state = "COMPLETE"
	a.ctx.ServerFiles["main.go"] = "package main"
	return nil
}

func (a *fakeApp) ProvideFeedback(ctx context.Context, feedback, componentName string) error {
	a.feedback = append(a.feedback, feedback)
	a.state = "REVIEW_DRAFT"
	return nil
}

func (a *fakeApp) Complete(ctx context.Context) (*appfsm.ApplicationContext, error) {
	return a.ctx, nil
}

type fixedLLM struct {
	completions []llm.Completion
	i           int
}

func (f *fixedLLM) Completion(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (llm.Completion, error) {
	c := f.completions[f.i]
	if f.i < len(f.completions)-1 {
		f.i++
	}
	return c, nil
}

func toolUseCompletion(name string, input map[string]any) llm.Completion {
	return llm.Completion{
		Content:    []llm.ContentBlock{llm.ToolUse{ID: "1", Name: name, Input: input}},
		StopReason: llm.StopToolUse,
	}
}

func TestStep_OnlyOffersStartFSMWhenInactive(t *testing.T) {
	app := newFakeApp()
	p := NewFSMToolProcessor(func() (App, error) { return app, nil })

	assert.Len(t, p.availableTools(), 1)
	assert.Equal(t, "start_fsm", p.availableTools()[0].Name)
}

func TestStep_StartFSMActivatesApp(t *testing.T) {
	app := newFakeApp()
	p := NewFSMToolProcessor(func() (App, error) { return app, nil })
	client := &fixedLLM{completions: []llm.Completion{
		toolUseCompletion("start_fsm", map[string]any{"app_description": "a todo app"}),
	}}

	_, status, err := p.Step(context.Background(), nil, client, llm.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusWIP, status)
	assert.True(t, app.IsActive())
	assert.Equal(t, "a todo app", app.ctx.UserPrompt)
}

func TestStep_NoToolCallsIsRefinementRequest(t *testing.T) {
	app := newFakeApp()
	app.state = "REVIEW_DRAFT"
	p := NewFSMToolProcessor(func() (App, error) { return app, nil })
	p.Restore(app)

	client := &fixedLLM{completions: []llm.Completion{
		{Content: []llm.ContentBlock{llm.TextRaw{Text: "nothing to do"}}, StopReason: llm.StopEndTurn},
	}}

	_, status, err := p.Step(context.Background(), nil, client, llm.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusRefinementRequest, status)
}

func TestStep_TerminalCompletionWithChangesIsCompleted(t *testing.T) {
	app := newFakeApp()
	app.state = "REVIEW_DRAFT"
	p := NewFSMToolProcessor(func() (App, error) { return app, nil })
	p.Restore(app)

	client := &fixedLLM{completions: []llm.Completion{
		toolUseCompletion("confirm_state", nil),
	}}

	_, status, err := p.Step(context.Background(), nil, client, llm.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
}

func TestStep_TerminalCompletionWithNoChangesIsRefinementRequest(t *testing.T) {
	app := newFakeApp()
	app.state = "REVIEW_DRAFT"
	p := NewFSMToolProcessor(func() (App, error) { return app, nil })
	p.Restore(app)

	client := &fixedLLM{completions: []llm.Completion{
		toolUseCompletion("confirm_state", nil),
	}}

	// Simulate the no-changes-applied flag the actor result would have set.
	app.ctx.NoChangesApplied = true
	_, status, err := p.Step(context.Background(), nil, client, llm.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusRefinementRequest, status, "a terminal completion with no_changes_applied must request refinement, not declare done")
}

func TestStep_ProvideFeedbackRecordsText(t *testing.T) {
	app := newFakeApp()
	app.state = "REVIEW_DRAFT"
	p := NewFSMToolProcessor(func() (App, error) { return app, nil })
	p.Restore(app)

	client := &fixedLLM{completions: []llm.Completion{
		toolUseCompletion("provide_feedback", map[string]any{"feedback": "add validation"}),
	}}

	_, status, err := p.Step(context.Background(), nil, client, llm.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusWIP, status)
	assert.Equal(t, []string{"add validation"}, app.feedback)
}

func TestStep_NoActiveFSMErrorsOnNonStartTool(t *testing.T) {
	app := newFakeApp()
	p := NewFSMToolProcessor(func() (App, error) { return app, nil })

	result, isError := p.dispatch(context.Background(), "confirm_state", nil)
	assert.True(t, isError)
	assert.Contains(t, result, "no active FSM session")
}

func TestStep_LLMErrorIsFailed(t *testing.T) {
	app := newFakeApp()
	p := NewFSMToolProcessor(func() (App, error) { return app, nil })

	client := &erroringLLM{err: errors.New("provider down")}
	_, status, err := p.Step(context.Background(), nil, client, llm.CompletionOptions{})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, status)
}

type erroringLLM struct{ err error }

func (e *erroringLLM) Completion(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (llm.Completion, error) {
	return llm.Completion{}, e.err
}
