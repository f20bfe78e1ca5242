package actors

import (
	"github.com/appdotbuild/agent/pkg/actorengine"
	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/llm"
)

const frontendSystemPrompt = `You are an expert React engineer building a client against a finished tRPC server.

Your responsibilities:
1. Produce client/src/** implementing the UI the user prompt describes
2. Call the server exclusively through the generated tRPC client
3. Keep components small and typed

Rules:
- CORRECTNESS over SPEED
- Match the existing client template's structure exactly
- The build must succeed with no type errors

Output Format:
### File: client/src/App.tsx
` + "```tsx" + `
[code]
` + "```" + `
`

// NewFrontend builds the Frontend actor: given the user prompt and the
// final server_files, produces client/src/**, evaluated by typecheck +
// build.
func NewFrontend(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return &actorengine.Actor{
		Config: actorengine.Config{BeamWidth: beamWidth, MaxDepth: maxDepth},
		Expander: llmExpander{
			client:    client,
			system:    frontendSystemPrompt,
			maxTokens: 8192,
			index:     index,
		},
		Eval: asEvaluator(execEval("cd client && npx tsc --noEmit && npm run build")),
	}
}
