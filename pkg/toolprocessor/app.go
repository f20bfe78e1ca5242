package toolprocessor

import (
	"context"
	"fmt"

	"github.com/appdotbuild/agent/pkg/appfsm"
	"github.com/appdotbuild/agent/pkg/fsm"
)

// App is the FSM lifecycle surface the tool processor drives. It is
// satisfied by *AppFSM; split out as an interface so tests can stub it
// without a real machine.
type App interface {
	IsActive() bool
	Start(ctx context.Context, appDescription string) error
	Confirm(ctx context.Context) error
	ProvideFeedback(ctx context.Context, feedback, componentName string) error
	Complete(ctx context.Context) (*appfsm.ApplicationContext, error)
	CurrentState() string
	Context() *appfsm.ApplicationContext
	IsTerminalCompletion() bool
	IsFailed() bool
	Dump() (fsm.Checkpoint, error)
}

// reviewFeedbackKind maps the review state currently active to the
// feedback event kind that loops back into its generating state, per
// the state-to-feedback wiring in appfsm.Build.
var reviewFeedbackKind = map[string]fsm.EventKind{
	"REVIEW_DRAFT":    appfsm.KindFeedbackDraft,
	"REVIEW_HANDLERS": appfsm.KindFeedbackHandlers,
	"REVIEW_INDEX":    appfsm.KindFeedbackIndex,
	"REVIEW_FRONTEND": appfsm.KindFeedbackFrontend,
}

// terminalStates are states with no further transitions.
var terminalStates = map[string]bool{
	"COMPLETE": true,
	"FAILURE":  true,
}

// AppFSM wraps a fsm.Machine built from appfsm.Build, exposing the
// lifecycle operations FSMToolProcessor's tools need.
type AppFSM struct {
	machine *fsm.Machine
	actors  appfsm.Actors
}

// NewAppFSM constructs an unstarted machine wired to actors. Start must
// be called (via the start_fsm tool) before any other operation.
func NewAppFSM(actors appfsm.Actors) (*AppFSM, error) {
	root := appfsm.Build(actors)
	ctx := appfsm.NewApplicationContext("")
	mc := fsm.NewMachineContext(ctx, appfsm.Dump, appfsm.Load)
	m, err := fsm.New(root, mc)
	if err != nil {
		return nil, err
	}
	return &AppFSM{machine: m, actors: actors}, nil
}

// RestoreAppFSM rebuilds a machine from a checkpoint, using actors
// whose workspaces have already been replayed from checkpoint.Context's
// server_files/frontend_files (see appfsm.NewRegistry's doc comment).
func RestoreAppFSM(actors appfsm.Actors, cp fsm.Checkpoint) (*AppFSM, error) {
	root := appfsm.Build(actors)
	mc := fsm.NewMachineContext(nil, appfsm.Dump, appfsm.Load)
	m, err := fsm.Load(root, mc, cp, appfsm.NewRegistry(actors).New)
	if err != nil {
		return nil, err
	}
	return &AppFSM{machine: m, actors: actors}, nil
}

func (a *AppFSM) IsActive() bool {
	return a.CurrentState() != "IDLE"
}

func (a *AppFSM) CurrentState() string {
	path := a.machine.StackPath()
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

func (a *AppFSM) Context() *appfsm.ApplicationContext {
	return a.machine.Context().(*appfsm.ApplicationContext)
}

func (a *AppFSM) Start(ctx context.Context, appDescription string) error {
	return a.machine.Send(ctx, appfsm.Prompt{UserPrompt: appDescription})
}

func (a *AppFSM) Confirm(ctx context.Context) error {
	return a.machine.Send(ctx, appfsm.Confirm{})
}

func (a *AppFSM) ProvideFeedback(ctx context.Context, feedback, componentName string) error {
	kind, ok := reviewFeedbackKind[a.CurrentState()]
	if !ok {
		return fmt.Errorf("toolprocessor: no feedback transition from state %q", a.CurrentState())
	}
	return a.machine.Send(ctx, appfsm.Feedback{Stage: kind, Text: feedback, ComponentName: componentName})
}

func (a *AppFSM) Complete(ctx context.Context) (*appfsm.ApplicationContext, error) {
	if a.CurrentState() != "COMPLETE" {
		return nil, fmt.Errorf("toolprocessor: cannot complete from state %q", a.CurrentState())
	}
	return a.Context(), nil
}

func (a *AppFSM) IsTerminalCompletion() bool {
	return a.CurrentState() == "COMPLETE"
}

func (a *AppFSM) IsFailed() bool {
	return a.CurrentState() == "FAILURE"
}

// Dump serializes the underlying machine's checkpoint, for session-
// layer snapshot persistence (see pkg/agentsession).
func (a *AppFSM) Dump() (fsm.Checkpoint, error) {
	return a.machine.Dump()
}
