package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	resp *CompletionResponse
	err  error
}

func (s stubProvider) Name() string             { return "stub" }
func (s stubProvider) Models() []string         { return []string{"stub-model"} }
func (s stubProvider) CountTokens(string) (int, error) { return 0, nil }
func (s stubProvider) Stream(context.Context, *CompletionRequest) (<-chan StreamChunk, error) {
	return nil, nil
}
func (s stubProvider) Complete(context.Context, *CompletionRequest) (*CompletionResponse, error) {
	return s.resp, s.err
}

func TestCompletion_TextConcatenatesTextRawBlocks(t *testing.T) {
	c := Completion{Content: []ContentBlock{
		TextRaw{Text: "hello "},
		ToolUse{Name: "read_file"},
		TextRaw{Text: "world"},
	}}
	assert.Equal(t, "hello world", c.Text())
}

func TestCompletion_ToolUsesFiltersOtherBlocks(t *testing.T) {
	c := Completion{Content: []ContentBlock{
		TextRaw{Text: "x"},
		ToolUse{Name: "a"},
		ThinkingBlock{Thinking: "..."},
		ToolUse{Name: "b"},
	}}
	uses := c.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "a", uses[0].Name)
	assert.Equal(t, "b", uses[1].Name)
}

func TestProviderLLM_WrapsTextAndToolCalls(t *testing.T) {
	provider := stubProvider{resp: &CompletionResponse{
		Content:      "thinking out loud",
		ToolCalls:    []ToolCall{{ID: "1", Name: "write_file", Arguments: `{"path":"a.go"}`}},
		FinishReason: "tool_use",
	}}
	client := NewAsyncLLM(provider)

	c, err := client.Completion(context.Background(), []Message{UserMessage("hi")}, CompletionOptions{})
	require.NoError(t, err)

	require.Len(t, c.Content, 2)
	assert.Equal(t, TextRaw{Text: "thinking out loud"}, c.Content[0])
	tu, ok := c.Content[1].(ToolUse)
	require.True(t, ok)
	assert.Equal(t, "write_file", tu.Name)
	assert.Equal(t, "a.go", tu.Input["path"])
	assert.Equal(t, StopToolUse, c.StopReason)
}

func TestProviderLLM_NoTextBlockWhenContentEmpty(t *testing.T) {
	provider := stubProvider{resp: &CompletionResponse{FinishReason: "stop"}}
	client := NewAsyncLLM(provider)

	c, err := client.Completion(context.Background(), nil, CompletionOptions{})
	require.NoError(t, err)
	assert.Empty(t, c.Content)
	assert.Equal(t, StopEndTurn, c.StopReason)
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, StopToolUse, mapFinishReason("tool_use"))
	assert.Equal(t, StopMaxTokens, mapFinishReason("max_tokens"))
	assert.Equal(t, StopSequence, mapFinishReason("stop_sequence"))
	assert.Equal(t, StopEndTurn, mapFinishReason("stop"))
}
