package actors

import (
	"context"
	"fmt"

	"github.com/appdotbuild/agent/pkg/actorengine"
	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/workspace"
)

const editSystemPrompt = `You are an expert engineer making a targeted edit to an existing codebase in response to user feedback.

Your responsibilities:
1. Use the read_file/write_file tools to inspect and change only what the feedback asks for
2. Prefer the smallest diff that satisfies the feedback
3. Stop calling tools once the edit is complete

Rules:
- CORRECTNESS over SPEED
- EXISTING PATTERNS ARE LAW
- Never rewrite a file you did not need to touch`

var editTools = []llm.Tool{
	{
		Name:        "read_file",
		Description: "Read a file's current content from the workspace.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []string{"path"},
		},
	},
	{
		Name:        "write_file",
		Description: "Write a file's full content to the workspace.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
			"required": []string{"path", "content"},
		},
	},
	{
		Name:        "search_code",
		Description: "Search the indexed codebase for symbols or snippets relevant to a query, when it's unclear which file to read.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
	},
}

// editExpander implements the "tool use in expansion" mechanics from
// spec §4.1: it iterates on a single node, executing every tool_use
// against the node's own workspace clone, rather than the single-shot
// markdown-block parsing the other actors use.
type editExpander struct {
	client llm.AsyncLLM
	index  *codeindex.Index // optional; backs the search_code tool
}

func (e editExpander) Expand(ctx context.Context, trajectory []llm.Message, ws workspace.Workspace) ([]llm.Message, map[string]string, error) {
	written := map[string]string{}

	exec := actorengine.ToolExecutor(func(ctx context.Context, ws workspace.Workspace, call llm.ToolUse) (string, bool) {
		switch call.Name {
		case "read_file":
			path, _ := call.Input["path"].(string)
			content, err := ws.ReadFile(ctx, path)
			if err != nil {
				return err.Error(), true
			}
			return content, false
		case "write_file":
			path, _ := call.Input["path"].(string)
			content, _ := call.Input["content"].(string)
			if err := ws.WriteFile(ctx, path, content); err != nil {
				return err.Error(), true
			}
			written[path] = content
			return "ok", false
		case "search_code":
			if e.index == nil {
				return "no code index configured", true
			}
			query, _ := call.Input["query"].(string)
			results, err := e.index.Search(ctx, query, 5)
			if err != nil {
				return err.Error(), true
			}
			if len(results) == 0 {
				return "no matches", false
			}
			return codeindex.FormatResults(results), false
		default:
			return fmt.Sprintf("unknown tool %q", call.Name), true
		}
	})

	messages, err := actorengine.RunToolLoop(ctx, e.client, trajectory, llm.CompletionOptions{
		System:    editSystemPrompt,
		MaxTokens: 8192,
		Tools:     editTools,
	}, ws, exec)
	if err != nil {
		return nil, nil, err
	}

	return messages, written, nil
}

// NewEdit builds the Edit actor: given existing files and user prompt,
// applies targeted edits via read_file/write_file/search_code tools,
// evaluated by typecheck + existing tests. index may be nil, in which
// case search_code reports itself unavailable rather than failing.
func NewEdit(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return &actorengine.Actor{
		Config:   actorengine.Config{BeamWidth: beamWidth, MaxDepth: maxDepth},
		Expander: editExpander{client: client, index: index},
		Eval:     asEvaluator(execEval("cd server && npx tsc --noEmit && npx jest --ci")),
	}
}
