package agentsession

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appdotbuild/agent/pkg/appfsm"
	"github.com/appdotbuild/agent/pkg/circuit"
	"github.com/appdotbuild/agent/pkg/fsm"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/toolprocessor"
	"github.com/appdotbuild/agent/pkg/workspace"
)

// reviewStages are the FSM states a ReviewResult event is emitted for.
var reviewStages = map[string]bool{
	"REVIEW_DRAFT":    true,
	"REVIEW_HANDLERS": true,
	"REVIEW_INDEX":    true,
	"REVIEW_FRONTEND": true,
}

// AgentSession drives one request's FSM tool-call loop to its next
// natural pause: restore from a checkpoint if one was supplied, run the
// processor until the FSM completes or declines to keep going
// unattended, and emit SSE events as each stage resolves. One
// AgentSession is constructed per (applicationId, traceId) pair.
type AgentSession struct {
	ApplicationID string
	TraceID       string

	Client    llm.AsyncLLM
	Apps      AppBuilder
	Names     NameGenerator
	Snapshots *SnapshotStore

	Stages *StageTracker

	// Breaker guards the step loop from hammering a consistently
	// failing LLM provider or actor. Nil disables the guard.
	Breaker *circuit.Breaker
}

// New constructs a session for one (applicationId, traceId) pair.
func New(applicationID, traceID string, client llm.AsyncLLM, apps AppBuilder, names NameGenerator, snapshots *SnapshotStore) *AgentSession {
	return &AgentSession{
		ApplicationID: applicationID,
		TraceID:       traceID,
		Client:        client,
		Apps:          apps,
		Names:         names,
		Snapshots:     snapshots,
		Stages:        NewStageTracker(),
		Breaker:       circuit.New(circuit.Config{}),
	}
}

// Run drives req to its next pause, streaming events on the returned
// channel. The channel has zero capacity — the session hands each
// event off synchronously, so a slow SSE writer applies real
// backpressure onto the FSM loop rather than letting it race ahead (see
// the concurrency model's single-request-at-a-time contract). The
// channel is closed when the request's work is done, successfully or
// not.
func (s *AgentSession) Run(ctx context.Context, req AgentRequest) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		s.run(ctx, req, out)
	}()
	return out
}

func (s *AgentSession) run(ctx context.Context, req AgentRequest, out chan<- Event) {
	app, err := s.restore(ctx, req)
	if err != nil {
		s.emitRuntimeError(out, err)
		return
	}

	if cp, dumpErr := app.Dump(); dumpErr == nil {
		_ = s.Snapshots.Put(s.TraceID, phaseEnter, cp)
	}
	defer func() {
		if cp, dumpErr := app.Dump(); dumpErr == nil {
			_ = s.Snapshots.Put(s.TraceID, phaseExit, cp)
		}
	}()

	messages := convertConversation(req.AllMessages)
	processor := toolprocessor.NewFSMToolProcessor(func() (toolprocessor.App, error) { return app, nil })
	processor.Restore(app)

	lastFiles := mergedFiles(app.Context())
	firstReview := true

	for {
		if s.Breaker != nil && !s.Breaker.Allow() {
			s.emitRuntimeError(out, fmt.Errorf("circuit breaker open: too many consecutive failures"))
			return
		}

		newMessages, status, stepErr := processor.Step(ctx, messages, s.Client, llm.CompletionOptions{})
		messages = newMessages
		if stepErr != nil {
			if s.Breaker != nil {
				s.Breaker.RecordError(stepErr)
			}
			s.emitRuntimeError(out, stepErr)
			return
		}
		if s.Breaker != nil {
			s.Breaker.RecordSuccess()
		}

		stage := app.CurrentState()
		s.Stages.Enter(stage)

		switch status {
		case toolprocessor.StatusFailed:
			reason := "FSM session failed"
			if errText := app.Context().Error; errText != nil {
				reason = *errText
			}
			s.emitRuntimeError(out, fmt.Errorf("%s", reason))
			return

		case toolprocessor.StatusCompleted:
			final := mergedFiles(app.Context())
			diff, _ := workspace.DiffAgainst(req.AllFiles, final)
			commit, _ := s.Names.GenerateCommitMessage(ctx, diff)
			s.emit(out, Event{
				Status:  StatusIdle,
				TraceID: s.TraceID,
				Message: Message{
					Role:          "assistant",
					Kind:          KindReviewResult,
					Content:       "generation complete",
					AgentState:    s.agentStateOf(app),
					UnifiedDiff:   strPtr(diff),
					CommitMessage: strPtr(commit),
				},
			})
			return

		case toolprocessor.StatusRefinementRequest:
			s.emit(out, Event{
				Status:  StatusIdle,
				TraceID: s.TraceID,
				Message: Message{
					Role:       "assistant",
					Kind:       KindRefinementRequest,
					Content:    lastAssistantText(messages),
					AgentState: s.agentStateOf(app),
				},
			})
			return

		default: // WIP
			if reviewStages[stage] {
				current := mergedFiles(app.Context())
				diff, _ := workspace.DiffAgainst(lastFiles, current)
				lastFiles = current

				msg := Message{
					Role:        "assistant",
					Kind:        KindReviewResult,
					Content:     fmt.Sprintf("review pending at %s", stage),
					AgentState:  s.agentStateOf(app),
					UnifiedDiff: strPtr(diff),
				}
				if firstReview && stage == "REVIEW_DRAFT" {
					name, _ := s.Names.GenerateAppName(ctx, app.Context().UserPrompt)
					msg.AppName = strPtr(name)
					msg.CommitMessage = strPtr("Initial commit")
					firstReview = false
				} else {
					commit, _ := s.Names.GenerateCommitMessage(ctx, diff)
					msg.CommitMessage = strPtr(commit)
				}
				s.emit(out, Event{Status: StatusRunning, TraceID: s.TraceID, Message: msg})
			} else {
				s.emit(out, Event{
					Status:  StatusRunning,
					TraceID: s.TraceID,
					Message: Message{Role: "assistant", Kind: KindStageResult, Content: stage, AgentState: s.agentStateOf(app)},
				})
			}
		}
	}
}

func (s *AgentSession) emit(out chan<- Event, e Event) {
	out <- e
}

func (s *AgentSession) emitRuntimeError(out chan<- Event, err error) {
	s.emit(out, Event{
		Status:  StatusIdle,
		TraceID: s.TraceID,
		Message: Message{Role: "assistant", Kind: KindRuntimeError, Content: err.Error()},
	})
}

func (s *AgentSession) agentStateOf(app toolprocessor.App) *AgentState {
	cp, err := app.Dump()
	if err != nil {
		return nil
	}
	return &AgentState{FSMState: cp}
}

// restore builds the App this session drives: a fresh, unstarted App,
// or one rebuilt from the checkpoint embedded in the request's
// agentState.
func (s *AgentSession) restore(ctx context.Context, req AgentRequest) (toolprocessor.App, error) {
	if req.AgentState == nil || req.AgentState.FSMState == nil {
		return s.Apps.New(ctx)
	}

	raw, err := json.Marshal(req.AgentState.FSMState)
	if err != nil {
		return nil, fmt.Errorf("agentsession: re-encode agentState.fsm_state: %w", err)
	}
	var cp fsm.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("agentsession: decode checkpoint: %w", err)
	}
	return s.Apps.Restore(ctx, cp)
}

// mergedFiles flattens an ApplicationContext's server and frontend
// trees into one path space for diffing, namespacing each half so that
// a server path and a frontend path of the same name never collide.
func mergedFiles(c *appfsm.ApplicationContext) map[string]string {
	out := make(map[string]string, len(c.ServerFiles)+len(c.FrontendFiles))
	for path, content := range c.ServerFiles {
		out["server/"+path] = content
	}
	for path, content := range c.FrontendFiles {
		out["frontend/"+path] = content
	}
	return out
}
