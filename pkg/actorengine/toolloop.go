package actorengine

import (
	"context"
	"fmt"

	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/workspace"
)

// ToolExecutor applies a single tool_use block against ws and returns
// its tool_result content.
type ToolExecutor func(ctx context.Context, ws workspace.Workspace, call llm.ToolUse) (result string, isError bool)

// RunToolLoop implements the "tool use in expansion" mechanics some
// actors need (notably targeted editing): it iterates on a single node,
// executing every tool_use block the model emits against ws, appending
// the tool_result, and re-querying until the model stops requesting
// tools or a stop sequence is hit. It returns the full message history
// produced (seed messages are not repeated).
func RunToolLoop(ctx context.Context, client llm.AsyncLLM, seed []llm.Message, opts llm.CompletionOptions, ws workspace.Workspace, exec ToolExecutor) ([]llm.Message, error) {
	messages := append([]llm.Message{}, seed...)
	var produced []llm.Message

	for {
		completion, err := client.Completion(ctx, messages, opts)
		if err != nil {
			return nil, fmt.Errorf("actorengine: tool loop completion: %w", err)
		}

		assistantMsg := completionToMessage(completion)
		messages = append(messages, assistantMsg)
		produced = append(produced, assistantMsg)

		toolUses := completion.ToolUses()
		if len(toolUses) == 0 || completion.StopReason != llm.StopToolUse {
			return produced, nil
		}

		var results []llm.Message
		for _, call := range toolUses {
			result, isError := exec(ctx, ws, call)
			results = append(results, llm.ToolResultMessage(call.ID, result, isError))
		}
		messages = append(messages, results...)
		produced = append(produced, results...)
	}
}

func completionToMessage(c llm.Completion) llm.Message {
	return llm.Message{
		Role:    "assistant",
		Content: c.Text(),
	}
}
