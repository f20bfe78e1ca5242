package toolprocessor

import (
	"context"
	"fmt"

	"github.com/appdotbuild/agent/pkg/llm"
)

// FSMToolProcessor is a thin adapter exposing FSM lifecycle operations
// as tools for an outer driving LLM. It holds no conversation state of
// its own — AgentSession owns the message history and calls Step once
// per turn.
type FSMToolProcessor struct {
	newApp func() (App, error)
	app    App
}

// NewFSMToolProcessor builds a processor with no active FSM. newApp
// constructs a fresh, unstarted App when start_fsm is called.
func NewFSMToolProcessor(newApp func() (App, error)) *FSMToolProcessor {
	return &FSMToolProcessor{newApp: newApp}
}

// Restore binds an already-reconstructed App (from a checkpoint) to the
// processor, skipping start_fsm for this session.
func (p *FSMToolProcessor) Restore(app App) {
	p.app = app
}

// Active reports whether a started, non-terminal FSM is bound.
func (p *FSMToolProcessor) Active() bool {
	return p.app != nil && p.app.IsActive()
}

var toolStartFSM = llm.Tool{
	Name:        "start_fsm",
	Description: "Start a new interactive FSM session for application generation",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"app_description": map[string]any{
				"type":        "string",
				"description": "Description for the application to generate",
			},
		},
		"required": []string{"app_description"},
	},
}

var toolConfirmState = llm.Tool{
	Name:        "confirm_state",
	Description: "Accept the current FSM state output and advance to the next state",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	},
}

var toolProvideFeedback = llm.Tool{
	Name:        "provide_feedback",
	Description: "Submit feedback for the current FSM state and trigger revision",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"feedback": map[string]any{
				"type":        "string",
				"description": "Feedback to provide for the current output",
			},
			"component_name": map[string]any{
				"type":        "string",
				"description": "Optional component name for handler-specific feedback",
			},
		},
		"required": []string{"feedback"},
	},
}

var toolCompleteFSM = llm.Tool{
	Name:        "complete_fsm",
	Description: "Finalize and return all generated artifacts from the FSM",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	},
}

// availableTools implements spec §4.5 step 1: only start_fsm is offered
// until an FSM exists.
func (p *FSMToolProcessor) availableTools() []llm.Tool {
	if !p.Active() {
		return []llm.Tool{toolStartFSM}
	}
	return []llm.Tool{toolConfirmState, toolProvideFeedback, toolCompleteFSM}
}

func (p *FSMToolProcessor) dispatch(ctx context.Context, name string, args map[string]any) (result string, isError bool) {
	switch name {
	case "start_fsm":
		if p.app != nil && p.app.IsActive() {
			// An active session already exists: spec's outer-loop contract
			// never issues a second start_fsm without completing first, so
			// this only happens on a stray duplicate call — surface it.
			return "an FSM session is already active", true
		}
		app, err := p.newApp()
		if err != nil {
			return fmt.Sprintf("failed to start FSM: %v", err), true
		}
		desc, _ := args["app_description"].(string)
		if err := app.Start(ctx, desc); err != nil {
			return fmt.Sprintf("failed to start FSM: %v", err), true
		}
		p.app = app
		return fmt.Sprintf("FSM started, now in state %s", app.CurrentState()), false

	case "confirm_state":
		if p.app == nil || !p.app.IsActive() {
			return "no active FSM session", true
		}
		if err := p.app.Confirm(ctx); err != nil {
			return fmt.Sprintf("failed to confirm state: %v", err), true
		}
		return fmt.Sprintf("FSM advanced to state %s", p.app.CurrentState()), false

	case "provide_feedback":
		if p.app == nil || !p.app.IsActive() {
			return "no active FSM session", true
		}
		feedback, _ := args["feedback"].(string)
		componentName, _ := args["component_name"].(string)
		if err := p.app.ProvideFeedback(ctx, feedback, componentName); err != nil {
			return fmt.Sprintf("failed to provide feedback: %v", err), true
		}
		return fmt.Sprintf("FSM updated with feedback, now in state %s", p.app.CurrentState()), false

	case "complete_fsm":
		if p.app == nil || !p.app.IsActive() {
			return "no active FSM session", true
		}
		c, err := p.app.Complete(ctx)
		if err != nil {
			return fmt.Sprintf("failed to complete FSM: %v", err), true
		}
		if len(c.ServerFiles) == 0 && len(c.FrontendFiles) == 0 {
			return "FSM completed without generating any artifacts", true
		}
		return fmt.Sprintf("completed with %d server files and %d frontend files", len(c.ServerFiles), len(c.FrontendFiles)), false

	default:
		return fmt.Sprintf("unexpected tool name: %s", name), true
	}
}

// Step runs one iteration of spec §4.5's loop: call the LLM with the
// currently available tool schemas, dispatch every tool_use in its
// response, append a synthetic tool-result message, and classify the
// outcome via the fsm_status decision table.
func (p *FSMToolProcessor) Step(ctx context.Context, messages []llm.Message, client llm.AsyncLLM, opts llm.CompletionOptions) ([]llm.Message, Status, error) {
	opts.Tools = p.availableTools()

	completion, err := client.Completion(ctx, messages, opts)
	if err != nil {
		return messages, StatusFailed, err
	}

	toolUses := completion.ToolUses()
	assistantMsg := completionToMessage(completion)
	newMessages := append(append([]llm.Message{}, messages...), assistantMsg)

	completedThisStep := false
	for _, call := range toolUses {
		result, isError := p.dispatch(ctx, call.Name, call.Input)
		newMessages = append(newMessages, llm.ToolResultMessage(call.ID, result, isError))
		if call.Name == "complete_fsm" && !isError {
			completedThisStep = true
		}
	}

	return newMessages, p.status(toolUses, completedThisStep), nil
}

func (p *FSMToolProcessor) status(toolUses []llm.ToolUse, completedThisStep bool) Status {
	if p.app != nil && p.app.IsFailed() {
		return StatusFailed
	}
	if p.app != nil && p.app.IsTerminalCompletion() {
		if p.app.Context().NoChangesApplied {
			return StatusRefinementRequest
		}
		return StatusCompleted
	}
	if completedThisStep {
		return StatusCompleted
	}
	if len(toolUses) == 0 {
		return StatusRefinementRequest
	}
	return StatusWIP
}

func completionToMessage(c llm.Completion) llm.Message {
	msg := llm.AssistantMessage(c.Text())
	for _, tu := range c.ToolUses() {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: tu.ID, Name: tu.Name})
	}
	return msg
}

