package actorengine

import (
	"context"
	"testing"

	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM returns one completion per call, in order.
type scriptedLLM struct {
	completions []llm.Completion
	calls       int
}

func (s *scriptedLLM) Completion(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (llm.Completion, error) {
	c := s.completions[s.calls]
	s.calls++
	return c, nil
}

func TestRunToolLoop_StopsWhenNoToolUse(t *testing.T) {
	client := &scriptedLLM{completions: []llm.Completion{
		{Content: []llm.ContentBlock{llm.TextRaw{Text: "done"}}, StopReason: llm.StopEndTurn},
	}}

	exec := ToolExecutor(func(ctx context.Context, ws workspace.Workspace, call llm.ToolUse) (string, bool) {
		t.Fatal("exec should not be called when the model emits no tool use")
		return "", false
	})

	produced, err := RunToolLoop(context.Background(), client, nil, llm.CompletionOptions{}, newMemWorkspace(), exec)
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	require.Len(t, produced, 1)
	assert.Equal(t, "done", produced[0].Content)
}

func TestRunToolLoop_IteratesUntilToolsStop(t *testing.T) {
	client := &scriptedLLM{completions: []llm.Completion{
		{
			Content:    []llm.ContentBlock{llm.ToolUse{ID: "1", Name: "write_file", Input: map[string]any{"path": "a.go", "content": "x"}}},
			StopReason: llm.StopToolUse,
		},
		{
			Content:    []llm.ContentBlock{llm.TextRaw{Text: "done"}},
			StopReason: llm.StopEndTurn,
		},
	}}

	ws := newMemWorkspace()
	exec := ToolExecutor(func(ctx context.Context, ws workspace.Workspace, call llm.ToolUse) (string, bool) {
		path, _ := call.Input["path"].(string)
		content, _ := call.Input["content"].(string)
		require.NoError(t, ws.WriteFile(ctx, path, content))
		return "ok", false
	})

	produced, err := RunToolLoop(context.Background(), client, nil, llm.CompletionOptions{}, ws, exec)
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "x", ws.files["a.go"])
	// produced: assistant(tool_use) + tool_result + assistant(done)
	require.Len(t, produced, 3)
	assert.Equal(t, "tool", produced[1].Role)
	assert.False(t, produced[1].IsError)
}
