package llm

import "context"

// StopReason is why a Completion stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopSequence     StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
)

// ContentBlock is one element of a Completion's ordered content
// sequence. The concrete variants are TextRaw, ToolUse, and
// ThinkingBlock — callers type-switch on the concrete type, mirroring
// the sum-typed event/outcome modeling used throughout this codebase
// instead of dispatching on a string tag.
type ContentBlock interface {
	isContentBlock()
}

// TextRaw is a plain text segment of a completion.
type TextRaw struct {
	Text string
}

func (TextRaw) isContentBlock() {}

// ToolUse is a request from the model to invoke a tool.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

func (ToolUse) isContentBlock() {}

// ThinkingBlock is an extended-thinking trace the model emitted
// alongside its answer. Callers that don't care about reasoning traces
// can ignore it in a type switch.
type ThinkingBlock struct {
	Thinking string
}

func (ThinkingBlock) isContentBlock() {}

// Completion is the ordered-content response shape required by the
// AsyncLLM contract: content is a sequence of sum-typed blocks rather
// than a flat string plus a separate tool-call list, so a caller can
// faithfully replay interleaved text/tool_use/thinking in order.
type Completion struct {
	Content      []ContentBlock
	StopReason   StopReason
	Usage        TokenUsage
	Model        string
}

// ToolUses returns the ToolUse blocks in Content, in order.
func (c Completion) ToolUses() []ToolUse {
	var out []ToolUse
	for _, block := range c.Content {
		if tu, ok := block.(ToolUse); ok {
			out = append(out, tu)
		}
	}
	return out
}

// Text concatenates every TextRaw block's text, in order.
func (c Completion) Text() string {
	var out string
	for _, block := range c.Content {
		if t, ok := block.(TextRaw); ok {
			out += t.Text
		}
	}
	return out
}

// AsyncLLM is the single external contract actors and the tool
// processor depend on: produce a completion given a message list and
// optional tool schemas. Implementations must faithfully echo the
// caller's tool schema contract when tools are supplied.
type AsyncLLM interface {
	Completion(ctx context.Context, messages []Message, opts CompletionOptions) (Completion, error)
}

// CompletionOptions carries the optional parameters of an AsyncLLM
// call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature *float64
	Tools       []Tool
	ToolChoice  string
	Model       string
	System      string
}

// ProviderLLM adapts any Provider to the AsyncLLM contract, translating
// the provider's flat CompletionResponse into an ordered content-block
// Completion: the response's Content (if non-empty) becomes a leading
// TextRaw block, followed by one ToolUse block per ToolCall.
type ProviderLLM struct {
	Provider Provider
}

// NewAsyncLLM wraps provider as an AsyncLLM.
func NewAsyncLLM(provider Provider) AsyncLLM {
	return ProviderLLM{Provider: provider}
}

// Completion implements AsyncLLM.
func (p ProviderLLM) Completion(ctx context.Context, messages []Message, opts CompletionOptions) (Completion, error) {
	req := &CompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		System:      opts.System,
		MaxTokens:   opts.MaxTokens,
		Tools:       opts.Tools,
		ToolChoice:  opts.ToolChoice,
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}

	resp, err := p.Provider.Complete(ctx, req)
	if err != nil {
		return Completion{}, err
	}
	return fromResponse(resp), nil
}

func fromResponse(resp *CompletionResponse) Completion {
	var blocks []ContentBlock
	if resp.Content != "" {
		blocks = append(blocks, TextRaw{Text: resp.Content})
	}
	for _, tc := range resp.ToolCalls {
		blocks = append(blocks, ToolUse{ID: tc.ID, Name: tc.Name, Input: parseToolArguments(tc.Arguments)})
	}

	return Completion{
		Content:    blocks,
		StopReason: mapFinishReason(resp.FinishReason),
		Usage:      resp.Usage,
		Model:      resp.Model,
	}
}

func mapFinishReason(reason string) StopReason {
	switch reason {
	case "tool_use":
		return StopToolUse
	case "max_tokens", "length":
		return StopMaxTokens
	case "stop_sequence":
		return StopSequence
	default:
		return StopEndTurn
	}
}
