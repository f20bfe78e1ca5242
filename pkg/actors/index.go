package actors

import (
	"github.com/appdotbuild/agent/pkg/actorengine"
	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/llm"
)

const indexSystemPrompt = `You are an expert backend engineer finalizing the tRPC router index that wires every handler together.

Your responsibilities:
1. Import and register every handler in server/src/handlers into the router
2. Wire the health route and context creation
3. Never introduce a handler that doesn't already exist

Rules:
- CORRECTNESS over SPEED
- EXISTING PATTERNS ARE LAW
- The server must boot and answer a healthcheck

Output Format:
### File: server/src/index.ts
` + "```ts" + `
[code]
` + "```" + `
`

// NewIndex builds the Index actor: finalizes tRPC index wiring,
// evaluated by typecheck + the server booting and answering a
// healthcheck.
func NewIndex(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return &actorengine.Actor{
		Config: actorengine.Config{BeamWidth: beamWidth, MaxDepth: maxDepth},
		Expander: llmExpander{
			client:    client,
			system:    indexSystemPrompt,
			maxTokens: 4096,
			index:     index,
		},
		Eval: asEvaluator(execEval("cd server && npx tsc --noEmit && npm run healthcheck")),
	}
}
