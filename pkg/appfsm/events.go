// Package appfsm wires the five concrete actors into the concrete
// code-generation pipeline: Draft -> Handlers -> Index -> Frontend,
// each gated by a review state awaiting CONFIRM or FEEDBACK_* from the
// outer driver (see spec §4.4).
package appfsm

import "github.com/appdotbuild/agent/pkg/fsm"

const (
	KindPrompt           fsm.EventKind = "PROMPT"
	KindConfirm          fsm.EventKind = "CONFIRM"
	KindFeedbackDraft    fsm.EventKind = "FEEDBACK_DRAFT"
	KindFeedbackHandlers fsm.EventKind = "FEEDBACK_HANDLERS"
	KindFeedbackIndex    fsm.EventKind = "FEEDBACK_INDEX"
	KindFeedbackFrontend fsm.EventKind = "FEEDBACK_FRONTEND"
)

// Prompt starts the pipeline with the initial application description.
type Prompt struct {
	UserPrompt string
}

func (Prompt) Kind() fsm.EventKind { return KindPrompt }
func (p Prompt) Payload() any      { return p.UserPrompt }

// Confirm accepts the current review state's output and advances.
type Confirm struct{}

func (Confirm) Kind() fsm.EventKind { return KindConfirm }
func (Confirm) Payload() any        { return nil }

// Feedback carries revision feedback for a named stage. ComponentName
// is only meaningful for FEEDBACK_HANDLERS (handler-specific feedback);
// spec.md marks it optional, so an empty string means "general
// feedback, not scoped to one handler".
type Feedback struct {
	Stage         fsm.EventKind
	Text          string
	ComponentName string
}

func (f Feedback) Kind() fsm.EventKind { return f.Stage }
func (f Feedback) Payload() any        { return f }
