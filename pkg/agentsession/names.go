package agentsession

import (
	"context"
	"strings"

	"github.com/appdotbuild/agent/pkg/llm"
)

// NameGenerator produces the short, human-facing labels a ReviewResult
// event carries.
type NameGenerator interface {
	// GenerateAppName returns a short, filesystem-friendly name for the
	// application described by userPrompt. Called once, on the first
	// ReviewResult (entry into REVIEW_DRAFT).
	GenerateAppName(ctx context.Context, userPrompt string) (string, error)

	// GenerateCommitMessage summarizes diff as a one-line commit
	// message. Called on every ReviewResult after the first.
	GenerateCommitMessage(ctx context.Context, diff string) (string, error)
}

// LLMNameGenerator implements NameGenerator with a plain, non-tool
// completion call against the same AsyncLLM the actors use.
type LLMNameGenerator struct {
	Client llm.AsyncLLM
	Model  string
}

// NewLLMNameGenerator wraps client for name/commit-message generation.
func NewLLMNameGenerator(client llm.AsyncLLM, model string) *LLMNameGenerator {
	return &LLMNameGenerator{Client: client, Model: model}
}

func (g *LLMNameGenerator) GenerateAppName(ctx context.Context, userPrompt string) (string, error) {
	prompt := "Generate a short, kebab-case application name (2-4 words, no punctuation besides hyphens) " +
		"for this request. Respond with only the name.\n\n" + userPrompt
	return g.complete(ctx, prompt, "generated-app")
}

func (g *LLMNameGenerator) GenerateCommitMessage(ctx context.Context, diff string) (string, error) {
	if strings.TrimSpace(diff) == "" {
		return "No changes", nil
	}
	prompt := "Write a one-line git commit message (imperative mood, no trailing period) summarizing this diff.\n\n" + diff
	return g.complete(ctx, prompt, "Update generated application")
}

func (g *LLMNameGenerator) complete(ctx context.Context, prompt, fallback string) (string, error) {
	completion, err := g.Client.Completion(ctx, []llm.Message{llm.UserMessage(prompt)}, llm.CompletionOptions{
		Model:     g.Model,
		MaxTokens: 64,
	})
	if err != nil {
		return fallback, err
	}
	text := strings.TrimSpace(completion.Text())
	if text == "" {
		return fallback, nil
	}
	return firstLine(text), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
