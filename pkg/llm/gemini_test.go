package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiProvider_NameAndModels(t *testing.T) {
	p := NewGeminiProvider("")
	assert.Equal(t, "gemini", p.Name())
	assert.Contains(t, p.Models(), "gemini-2.5-flash")
}

func TestGeminiProvider_CompleteWithoutAPIKeyErrors(t *testing.T) {
	p := NewGeminiProvider("")
	_, err := p.Complete(context.Background(), &CompletionRequest{Model: "gemini-2.5-flash"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestMessageToContent_UserText(t *testing.T) {
	p := &GeminiProvider{}
	content := p.messageToContent(UserMessage("hello"))
	require.NotNil(t, content)
	assert.Equal(t, "user", content.Role)
	require.Len(t, content.Parts, 1)
	assert.Equal(t, "hello", content.Parts[0].Text)
}

func TestMessageToContent_AssistantMapsToModelRole(t *testing.T) {
	p := &GeminiProvider{}
	content := p.messageToContent(AssistantMessage("reply"))
	require.NotNil(t, content)
	assert.Equal(t, "model", content.Role)
}

func TestMessageToContent_ToolResultBecomesFunctionResponse(t *testing.T) {
	p := &GeminiProvider{}
	content := p.messageToContent(ToolResultMessage("call-1", "42", false))
	require.NotNil(t, content)
	require.Len(t, content.Parts, 1)
	require.NotNil(t, content.Parts[0].FunctionResponse)
	assert.Equal(t, "call-1", content.Parts[0].FunctionResponse.ID)
	assert.Equal(t, "42", content.Parts[0].FunctionResponse.Response["result"])
}

func TestToGeminiSchema_ConvertsNestedObject(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}

	s := toGeminiSchema(schema)
	require.NotNil(t, s)
	assert.Equal(t, genai.Type("object"), s.Type)
	assert.Equal(t, []string{"name"}, s.Required)
	require.Contains(t, s.Properties, "name")
	assert.Equal(t, genai.Type("string"), s.Properties["name"].Type)
}

func TestMapGeminiFinishReason(t *testing.T) {
	assert.Equal(t, "stop", mapGeminiFinishReason("STOP"))
	assert.Equal(t, "max_tokens", mapGeminiFinishReason("MAX_TOKENS"))
	assert.Equal(t, "", mapGeminiFinishReason(""))
}
