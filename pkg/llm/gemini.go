package llm

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini,
// via the official SDK rather than a hand-rolled HTTP client.
type GeminiProvider struct {
	client *genai.Client
	models []string
}

// NewGeminiProvider creates a new Gemini provider. The client is built
// here, once; with an empty apiKey (or a client construction error) no
// client is built and Complete and Stream return an invalid_api_key
// error.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	p := &GeminiProvider{
		models: []string{
			"gemini-3-flash-preview",
			"gemini-2.5-pro",
			"gemini-2.5-flash",
			"gemini-2.0-flash",
		},
	}
	if apiKey == "" {
		return p
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err == nil {
		p.client = client
	}
	return p
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Models() []string {
	return p.models
}

func (p *GeminiProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if p.client == nil {
		return nil, &ProviderError{Provider: "gemini", Code: "invalid_api_key", Message: "client not configured"}
	}

	contents, systemInstruction := p.toGeminiContents(req)
	config := p.toGeminiConfig(req, systemInstruction)

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, p.wrapError(err)
	}

	return p.fromGeminiResponse(resp)
}

func (p *GeminiProvider) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error) {
	if p.client == nil {
		return nil, &ProviderError{Provider: "gemini", Code: "invalid_api_key", Message: "client not configured"}
	}

	contents, systemInstruction := p.toGeminiContents(req)
	config := p.toGeminiConfig(req, systemInstruction)

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)

		var usage *TokenUsage
		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				ch <- StreamChunk{Error: p.wrapError(err), Done: true}
				return
			}
			if resp.UsageMetadata != nil {
				usage = &TokenUsage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
				}
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					ch <- StreamChunk{Content: part.Text}
				}
				if part.FunctionCall != nil {
					args, _ := json.Marshal(part.FunctionCall.Args)
					ch <- StreamChunk{ToolCall: &ToolCall{
						ID:        part.FunctionCall.ID,
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					}}
				}
			}
		}
		ch <- StreamChunk{Done: true, Usage: usage}
	}()

	return ch, nil
}

func (p *GeminiProvider) CountTokens(content string) (int, error) {
	return EstimateTokens(content), nil
}

// toGeminiContents converts the shared message history into Gemini
// contents plus a separate system instruction, mirroring how Gemini
// splits system prompts from the turn history.
func (p *GeminiProvider) toGeminiContents(req *CompletionRequest) ([]*genai.Content, *genai.Content) {
	var systemInstruction *genai.Content
	if req.System != "" {
		systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			continue
		}
		content := p.messageToContent(msg)
		if content != nil {
			contents = append(contents, content)
		}
	}
	return contents, systemInstruction
}

func (p *GeminiProvider) messageToContent(msg Message) *genai.Content {
	var parts []*genai.Part

	if msg.Content != "" && msg.Role != "tool" {
		parts = append(parts, &genai.Part{Text: msg.Content})
	}

	for _, tc := range msg.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Arguments), &args)
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
		})
	}

	if msg.Role == "tool" {
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Response: map[string]any{"result": msg.ToolResult},
			},
		})
	}

	if len(parts) == 0 {
		return nil
	}

	role := "user"
	if msg.Role == "assistant" {
		role = "model"
	}
	return &genai.Content{Parts: parts, Role: role}
}

func (p *GeminiProvider) toGeminiConfig(req *CompletionRequest, systemInstruction *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}

	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		config.Temperature = &t
	}
	if req.TopP > 0 {
		tp := float32(req.TopP)
		config.TopP = &tp
	}
	if len(req.StopSequences) > 0 {
		config.StopSequences = req.StopSequences
	}
	if len(req.Tools) > 0 {
		config.Tools = p.toGeminiTools(req.Tools)
	}

	return config
}

func (p *GeminiProvider) toGeminiTools(tools []Tool) []*genai.Tool {
	genaiTools := make([]*genai.Tool, 0, len(tools))
	for _, t := range tools {
		genaiTools = append(genaiTools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGeminiSchema(t.Parameters),
			}},
		})
	}
	return genaiTools
}

// toGeminiSchema converts a JSON-schema map (the shape Tool.Parameters
// carries) into genai's typed Schema.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGeminiSchema(items)
	}
	return s
}

func (p *GeminiProvider) fromGeminiResponse(resp *genai.GenerateContentResponse) (*CompletionResponse, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ProviderError{Provider: "gemini", Code: "empty_response", Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	out := &CompletionResponse{
		Model:        "",
		FinishReason: mapGeminiFinishReason(string(candidate.FinishReason)),
	}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}

	return out, nil
}

func mapGeminiFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "max_tokens"
	default:
		if reason != "" {
			return "stop"
		}
		return ""
	}
}

func (p *GeminiProvider) wrapError(err error) error {
	return &ProviderError{Provider: "gemini", Code: "request_failed", Message: "gemini request failed", Err: err}
}
