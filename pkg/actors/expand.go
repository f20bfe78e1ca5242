package actors

import (
	"context"
	"fmt"

	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/workspace"
)

// llmExpander is the shared single-shot expansion mechanics every
// concrete actor but Edit uses: render a prompt from the trajectory,
// call the LLM once, parse its response into file blocks, write them
// into the node's workspace clone.
type llmExpander struct {
	client       llm.AsyncLLM
	system       string
	maxTokens    int
	promptSuffix string // appended to the rendered trajectory on every call
	index        *codeindex.Index // optional; retrieved context is appended as a final user message when set
}

func (e llmExpander) Expand(ctx context.Context, trajectory []llm.Message, ws workspace.Workspace) ([]llm.Message, map[string]string, error) {
	messages := append([]llm.Message{}, trajectory...)
	if e.promptSuffix != "" {
		messages = append(messages, llm.UserMessage(e.promptSuffix))
	}
	if retrieved := retrievedContext(ctx, e.index, messages); retrieved != "" {
		messages = append(messages, llm.UserMessage(retrieved))
	}

	completion, err := e.client.Completion(ctx, messages, llm.CompletionOptions{
		System:    e.system,
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("actors: completion: %w", err)
	}

	text := completion.Text()
	blocks := parseFileBlocks(text)
	files := filesFromBlocks(blocks)

	for _, b := range blocks {
		if err := ws.WriteFile(ctx, b.Path, b.Content); err != nil {
			return nil, nil, fmt.Errorf("actors: write %s: %w", b.Path, err)
		}
	}

	outMessages := []llm.Message{llm.AssistantMessage(text)}
	if e.promptSuffix != "" {
		outMessages = append([]llm.Message{llm.UserMessage(e.promptSuffix)}, outMessages...)
	}
	return outMessages, files, nil
}

// execEval builds an Evaluator that shells out cmd against the leaf's
// workspace and treats exit code 0 as a solution. Non-zero exit codes
// are not an error — the node simply isn't a solution, per the error
// taxonomy's "compile/test failure is not an error" row.
func execEval(cmd string) evalFunc {
	return func(ctx context.Context, ws workspace.Workspace) (solution bool, feedback string, err error) {
		res, execErr := ws.Exec(ctx, cmd)
		if execErr != nil {
			return false, "", fmt.Errorf("actors: eval exec: %w", execErr)
		}
		if res.ExitCode == 0 {
			return true, "", nil
		}
		return false, res.Stdout + res.Stderr, nil
	}
}

type evalFunc func(ctx context.Context, ws workspace.Workspace) (solution bool, feedback string, err error)

// retrievedContext queries idx with the trajectory's most recent user
// message and formats any hits as a context block, or returns "" when
// idx is nil, empty, or nothing scores.
func retrievedContext(ctx context.Context, idx *codeindex.Index, messages []llm.Message) string {
	if idx == nil {
		return ""
	}
	query := lastUserContent(messages)
	if query == "" {
		return ""
	}
	results, err := idx.Search(ctx, query, 5)
	if err != nil || len(results) == 0 {
		return ""
	}
	return codeindex.FormatResults(results)
}

func lastUserContent(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
