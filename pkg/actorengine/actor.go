// Package actorengine implements the beam-search actor framework: every
// concrete actor (Draft, Handlers, Index, Frontend, Edit) shares this
// expand/evaluate/select mechanics and differs only in its prompt,
// tools, and eval command (see pkg/actors).
package actorengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/ratelimit"
	"github.com/appdotbuild/agent/pkg/searchtree"
	"github.com/appdotbuild/agent/pkg/workspace"
)

// Eval is the verdict an actor's eval predicate renders for a leaf.
type Eval struct {
	Solution bool
	Feedback string // populated when !Solution, for logs/retries
}

// Expander produces one child node's contribution given the
// accumulated trajectory messages and a workspace clone already scoped
// to that child. It writes files into ws itself (via ws.WriteFile) and
// returns the messages/files delta to record on the new node.
type Expander interface {
	Expand(ctx context.Context, trajectory []llm.Message, ws workspace.Workspace) (messages []llm.Message, files map[string]string, err error)
}

// ExpanderFunc adapts a function to an Expander.
type ExpanderFunc func(ctx context.Context, trajectory []llm.Message, ws workspace.Workspace) ([]llm.Message, map[string]string, error)

func (f ExpanderFunc) Expand(ctx context.Context, trajectory []llm.Message, ws workspace.Workspace) ([]llm.Message, map[string]string, error) {
	return f(ctx, trajectory, ws)
}

// Evaluator renders a verdict for a leaf node's workspace.
type Evaluator interface {
	Eval(ctx context.Context, ws workspace.Workspace) (Eval, error)
}

// EvaluatorFunc adapts a function to an Evaluator.
type EvaluatorFunc func(ctx context.Context, ws workspace.Workspace) (Eval, error)

func (f EvaluatorFunc) Eval(ctx context.Context, ws workspace.Workspace) (Eval, error) {
	return f(ctx, ws)
}

// Config bounds an actor's beam search.
type Config struct {
	// BeamWidth is how many parallel trajectories to maintain.
	BeamWidth int
	// MaxDepth is the maximum number of expansion rounds.
	MaxDepth int
}

// ErrNoSolution is returned when an actor exhausts MaxDepth without any
// leaf passing its eval predicate.
var ErrNoSolution = errors.New("actorengine: no solution found within max_depth")

// Actor runs a bounded beam search over a search tree whose nodes each
// own a disposable workspace clone.
type Actor struct {
	Config   Config
	Expander Expander
	Eval     Evaluator

	// Limiter throttles calls into Expander.Expand, shared across every
	// node expanded concurrently within a round and across actors. Nil
	// disables throttling.
	Limiter *ratelimit.Limiter
}

// Result is the outcome of a successful Execute call.
type Result struct {
	Tree *searchtree.Tree
	Leaf searchtree.NodeID

	// Files is the merged file set along the winning trajectory.
	Files map[string]string
	// Messages is the concatenated message history along the winning
	// trajectory.
	Messages []llm.Message
	// NoChangesApplied is true when the entire winning trajectory wrote
	// no files at all (see spec's no-changes detection).
	NoChangesApplied bool
}

// Execute runs the beam search: seedMessages and rootWorkspace define
// the root node; rootWorkspace is owned by the returned tree and is
// cloned into every node produced during expansion.
func (a *Actor) Execute(ctx context.Context, seedMessages []llm.Message, rootWorkspace workspace.Workspace) (*Result, error) {
	beamWidth := a.Config.BeamWidth
	if beamWidth < 1 {
		beamWidth = 1
	}
	maxDepth := a.Config.MaxDepth
	if maxDepth < 1 {
		maxDepth = 1
	}

	tree := searchtree.New(searchtree.BaseData{
		Workspace: rootWorkspace,
		Messages:  seedMessages,
	})

	root := tree.Root()
	frontier := make([]searchtree.NodeID, 0, beamWidth)
	rootIsLeaf := true

	for depth := 0; depth < maxDepth; depth++ {
		if rootIsLeaf {
			frontier = frontier[:0]
			for i := 0; i < beamWidth; i++ {
				frontier = append(frontier, root)
			}
		} else {
			frontier = tree.Leaves()
		}

		children, err := a.expandRound(ctx, tree, frontier)
		if err != nil {
			return nil, fmt.Errorf("actorengine: expansion round %d: %w", depth, err)
		}
		rootIsLeaf = false

		solution, err := a.evaluateRound(ctx, tree, children)
		if err != nil {
			return nil, fmt.Errorf("actorengine: evaluation round %d: %w", depth, err)
		}
		if solution != nil {
			return a.buildResult(tree, *solution), nil
		}
	}

	return nil, ErrNoSolution
}

// expandRound expands every frontier node in parallel, appending one
// child per frontier node. The first failing expansion cancels the
// others; expansions that already produced a child are kept, and the
// round fails only when no expansion produced one.
func (a *Actor) expandRound(ctx context.Context, tree *searchtree.Tree, frontier []searchtree.NodeID) ([]searchtree.NodeID, error) {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		child searchtree.NodeID
		err   error
	}
	results := make([]outcome, len(frontier))

	var wg sync.WaitGroup
	for i, nodeID := range frontier {
		wg.Add(1)
		go func(i int, nodeID searchtree.NodeID) {
			defer wg.Done()
			child, err := a.expandOne(roundCtx, tree, nodeID)
			results[i] = outcome{child: child, err: err}
			if err != nil {
				cancel()
			}
		}(i, nodeID)
	}
	wg.Wait()

	var firstErr error
	children := make([]searchtree.NodeID, 0, len(frontier))
	for _, r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
			continue
		}
		if r.err == nil {
			children = append(children, r.child)
		}
	}

	if len(children) == 0 {
		if firstErr == nil {
			firstErr = errors.New("actorengine: every expansion in the round failed")
		}
		return nil, firstErr
	}
	return children, nil
}

func (a *Actor) expandOne(ctx context.Context, tree *searchtree.Tree, parentID searchtree.NodeID) (searchtree.NodeID, error) {
	parent := tree.Get(parentID)
	clone, err := parent.Data.Workspace.Clone(ctx)
	if err != nil {
		return 0, fmt.Errorf("clone workspace: %w", err)
	}

	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("actorengine: rate limit wait: %w", err)
		}
	}

	trajectory := tree.Messages(parentID)
	messages, files, err := a.Expander.Expand(ctx, trajectory, clone)
	if err != nil {
		return 0, err
	}

	id := tree.AddChild(parentID, searchtree.BaseData{
		Workspace: clone,
		Messages:  messages,
		Files:     files,
	})
	return id, nil
}

// evaluateRound evaluates every newly produced leaf; if any is a
// solution its node id is returned.
func (a *Actor) evaluateRound(ctx context.Context, tree *searchtree.Tree, children []searchtree.NodeID) (*searchtree.NodeID, error) {
	for _, id := range children {
		node := tree.Get(id)
		verdict, err := a.Eval.Eval(ctx, node.Data.Workspace)
		if err != nil {
			return nil, err
		}
		if verdict.Solution {
			found := id
			return &found, nil
		}
	}
	return nil, nil
}

func (a *Actor) buildResult(tree *searchtree.Tree, leaf searchtree.NodeID) *Result {
	files := tree.Files(leaf)
	return &Result{
		Tree:             tree,
		Leaf:             leaf,
		Files:            files,
		Messages:         tree.Messages(leaf),
		NoChangesApplied: len(files) == 0,
	}
}
