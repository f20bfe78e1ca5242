package appfsm

import (
	"context"
	"fmt"

	actorspkg "github.com/appdotbuild/agent/pkg/actors"
	"github.com/appdotbuild/agent/pkg/actorengine"
	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/fsm"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/ratelimit"
	"github.com/appdotbuild/agent/pkg/workspace"
)

func draftActor(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return actorspkg.NewDraft(client, beamWidth, maxDepth, index)
}

func handlersActor(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return actorspkg.NewHandlers(client, beamWidth, maxDepth, index)
}

func indexActor(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return actorspkg.NewIndex(client, beamWidth, maxDepth, index)
}

func frontendActor(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return actorspkg.NewFrontend(client, beamWidth, maxDepth, index)
}

func editActor(client llm.AsyncLLM, index *codeindex.Index) *actorengine.Actor {
	return actorspkg.NewEdit(client, 1, 1, index)
}

// Actors bundles the constructed capability adapters the machine
// invokes. Built once per application (per AgentSession), each owning
// its own workspace lineage.
type Actors struct {
	Draft    *ActorAdapter
	Handlers *ActorAdapter
	Index    *ActorAdapter
	Frontend *ActorAdapter
	Edit     *ActorAdapter
}

// NewActors wires the five actorengine actors, rooted at serverWS and
// frontendWS respectively, into adapters ready for invocation. index
// and limiter are optional (nil is fine in tests): index backs
// retrieval-augmented prompting and the Edit actor's search_code tool,
// limiter throttles each actor's LLM calls under beam-search fanout.
func NewActors(client llm.AsyncLLM, serverWS, frontendWS workspace.Workspace, beamWidths map[string]int, maxDepths map[string]int, index *codeindex.Index, limiter *ratelimit.Limiter) Actors {
	bw := func(name string, def int) int {
		if v, ok := beamWidths[name]; ok {
			return v
		}
		return def
	}
	md := func(name string, def int) int {
		if v, ok := maxDepths[name]; ok {
			return v
		}
		return def
	}
	withLimiter := func(a *actorengine.Actor) *actorengine.Actor {
		a.Limiter = limiter
		return a
	}

	return Actors{
		Draft:    NewActorAdapter(withLimiter(draftActor(client, bw("draft", 1), md("draft", 3), index)), serverWS),
		Handlers: NewActorAdapter(withLimiter(handlersActor(client, bw("handlers", 3), md("handlers", 3), index)), serverWS),
		Index:    NewActorAdapter(withLimiter(indexActor(client, bw("index", 3), md("index", 2), index)), serverWS),
		Frontend: NewActorAdapter(withLimiter(frontendActor(client, bw("frontend", 1), md("frontend", 20), index)), frontendWS),
		Edit:     NewActorAdapter(withLimiter(editActor(client, index)), serverWS),
	}
}

func mc(m *fsm.MachineContext) *ApplicationContext {
	return m.Value.(*ApplicationContext)
}

func asResult(payload any) (*actorengine.Result, error) {
	r, ok := payload.(*actorengine.Result)
	if !ok {
		return nil, fmt.Errorf("appfsm: expected *actorengine.Result, got %T", payload)
	}
	return r, nil
}

func mergeInto(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeResultAction(apply func(c *ApplicationContext, r *actorengine.Result)) fsm.Action {
	return func(ctx context.Context, m *fsm.MachineContext, payload any) error {
		r, err := asResult(payload)
		if err != nil {
			return err
		}
		c := mc(m)
		c.NoChangesApplied = r.NoChangesApplied
		apply(c, r)
		return nil
	}
}

func failureAction() fsm.Action {
	return func(ctx context.Context, m *fsm.MachineContext, payload any) error {
		c := mc(m)
		msg := "actor failed"
		if err, ok := payload.(error); ok && err != nil {
			msg = err.Error()
		}
		c.Error = &msg
		return nil
	}
}

// Build constructs the application FSM's state tree: DRAFT -> REVIEW_DRAFT
// -> HANDLERS -> REVIEW_HANDLERS -> INDEX -> REVIEW_INDEX -> FRONTEND ->
// REVIEW_FRONTEND -> COMPLETE, with FEEDBACK_* loops back into each
// generating state and any actor error routing to FAILURE.
func Build(actors Actors) *fsm.State {
	draft := &fsm.State{
		Name: "DRAFT",
		Invoke: &fsm.Invoke{
			Src: actors.Draft,
			InputFn: func(m *fsm.MachineContext) any {
				c := mc(m)
				prompt := c.UserPrompt
				if c.DraftFeedback != "" {
					prompt = fmt.Sprintf("%s\n\nRevision feedback: %s", prompt, c.DraftFeedback)
				}
				return []llm.Message{llm.UserMessage(prompt)}
			},
			OnDone: fsm.Transition{
				Target: fsm.StatePath{"REVIEW_DRAFT"},
				Actions: []fsm.Action{mergeResultAction(func(c *ApplicationContext, r *actorengine.Result) {
					mergeInto(c.ServerFiles, r.Files)
					summary := r.Messages[len(r.Messages)-1].Content
					c.Draft = &summary
				})},
			},
			OnError: fsm.Transition{Target: fsm.StatePath{"FAILURE"}, Actions: []fsm.Action{failureAction()}},
		},
	}

	reviewDraft := &fsm.State{
		Name: "REVIEW_DRAFT",
		On: map[fsm.EventKind]fsm.Transition{
			KindConfirm:       {Target: fsm.StatePath{"HANDLERS"}},
			KindFeedbackDraft: {Target: fsm.StatePath{"DRAFT"}, Actions: []fsm.Action{feedbackAction(func(c *ApplicationContext, f Feedback) { c.DraftFeedback = f.Text })}},
		},
	}

	handlers := &fsm.State{
		Name: "HANDLERS",
		Invoke: &fsm.Invoke{
			Src: actors.Handlers,
			InputFn: func(m *fsm.MachineContext) any {
				c := mc(m)
				return serverFilesPrompt(c, "Fill in the handler implementations.", c.HandlersFeedback[""])
			},
			OnDone: fsm.Transition{
				Target: fsm.StatePath{"REVIEW_HANDLERS"},
				Actions: []fsm.Action{mergeResultAction(func(c *ApplicationContext, r *actorengine.Result) {
					mergeInto(c.ServerFiles, r.Files)
				})},
			},
			OnError: fsm.Transition{Target: fsm.StatePath{"FAILURE"}, Actions: []fsm.Action{failureAction()}},
		},
	}

	reviewHandlers := &fsm.State{
		Name: "REVIEW_HANDLERS",
		On: map[fsm.EventKind]fsm.Transition{
			KindConfirm: {Target: fsm.StatePath{"INDEX"}},
			KindFeedbackHandlers: {Target: fsm.StatePath{"HANDLERS"}, Actions: []fsm.Action{feedbackAction(func(c *ApplicationContext, f Feedback) {
				c.HandlersFeedback[f.ComponentName] = f.Text
			})}},
		},
	}

	index := &fsm.State{
		Name: "INDEX",
		Invoke: &fsm.Invoke{
			Src: actors.Index,
			InputFn: func(m *fsm.MachineContext) any {
				c := mc(m)
				return serverFilesPrompt(c, "Finalize the tRPC router index.", c.IndexFeedback)
			},
			OnDone: fsm.Transition{
				Target: fsm.StatePath{"REVIEW_INDEX"},
				Actions: []fsm.Action{mergeResultAction(func(c *ApplicationContext, r *actorengine.Result) {
					mergeInto(c.ServerFiles, r.Files)
				})},
			},
			OnError: fsm.Transition{Target: fsm.StatePath{"FAILURE"}, Actions: []fsm.Action{failureAction()}},
		},
	}

	reviewIndex := &fsm.State{
		Name: "REVIEW_INDEX",
		On: map[fsm.EventKind]fsm.Transition{
			KindConfirm:       {Target: fsm.StatePath{"FRONTEND"}},
			KindFeedbackIndex: {Target: fsm.StatePath{"INDEX"}, Actions: []fsm.Action{feedbackAction(func(c *ApplicationContext, f Feedback) { c.IndexFeedback = f.Text })}},
		},
	}

	frontend := &fsm.State{
		Name: "FRONTEND",
		Invoke: &fsm.Invoke{
			Src: actors.Frontend,
			InputFn: func(m *fsm.MachineContext) any {
				c := mc(m)
				prompt := fmt.Sprintf("Build the React client for: %s", c.UserPrompt)
				if c.FrontendFeedback != "" {
					prompt = fmt.Sprintf("%s\n\nRevision feedback: %s", prompt, c.FrontendFeedback)
				}
				return []llm.Message{llm.UserMessage(prompt)}
			},
			OnDone: fsm.Transition{
				Target: fsm.StatePath{"REVIEW_FRONTEND"},
				Actions: []fsm.Action{mergeResultAction(func(c *ApplicationContext, r *actorengine.Result) {
					mergeInto(c.FrontendFiles, r.Files)
				})},
			},
			OnError: fsm.Transition{Target: fsm.StatePath{"FAILURE"}, Actions: []fsm.Action{failureAction()}},
		},
	}

	reviewFrontend := &fsm.State{
		Name: "REVIEW_FRONTEND",
		On: map[fsm.EventKind]fsm.Transition{
			KindConfirm: {Target: fsm.StatePath{"COMPLETE"}},
			KindFeedbackFrontend: {Target: fsm.StatePath{"FRONTEND"}, Actions: []fsm.Action{feedbackAction(func(c *ApplicationContext, f Feedback) {
				c.FrontendFeedback = f.Text
			})}},
		},
	}

	complete := &fsm.State{Name: "COMPLETE"}
	failure := &fsm.State{Name: "FAILURE"}

	idle := &fsm.State{
		Name: "IDLE",
		On: map[fsm.EventKind]fsm.Transition{
			KindPrompt: {Target: fsm.StatePath{"DRAFT"}, Actions: []fsm.Action{promptAction()}},
		},
	}

	root := &fsm.State{
		Name:    "root",
		Initial: "IDLE",
		Children: map[string]*fsm.State{
			"IDLE":            idle,
			"DRAFT":           draft,
			"REVIEW_DRAFT":    reviewDraft,
			"HANDLERS":        handlers,
			"REVIEW_HANDLERS": reviewHandlers,
			"INDEX":           index,
			"REVIEW_INDEX":    reviewIndex,
			"FRONTEND":        frontend,
			"REVIEW_FRONTEND": reviewFrontend,
			"COMPLETE":        complete,
			"FAILURE":         failure,
		},
	}
	return root
}

func promptAction() fsm.Action {
	return func(ctx context.Context, m *fsm.MachineContext, payload any) error {
		prompt, _ := payload.(string)
		mc(m).UserPrompt = prompt
		return nil
	}
}

func feedbackAction(apply func(c *ApplicationContext, f Feedback)) fsm.Action {
	return func(ctx context.Context, m *fsm.MachineContext, payload any) error {
		f, ok := payload.(Feedback)
		if !ok {
			return fmt.Errorf("appfsm: expected Feedback payload, got %T", payload)
		}
		c := mc(m)
		c.NoChangesApplied = false
		apply(c, f)
		return nil
	}
}

func serverFilesPrompt(c *ApplicationContext, instruction, feedback string) []llm.Message {
	prompt := instruction
	if feedback != "" {
		prompt = fmt.Sprintf("%s\n\nRevision feedback: %s", instruction, feedback)
	}
	return []llm.Message{llm.UserMessage(prompt)}
}
