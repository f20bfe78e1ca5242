package actors

import (
	"github.com/appdotbuild/agent/pkg/actorengine"
	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/llm"
)

const handlersSystemPrompt = `You are an expert backend engineer filling in tRPC handler implementations against an existing drizzle/zod skeleton.

Your responsibilities:
1. Implement every handler stub with working logic against the drizzle schema
2. Add a co-located test file per handler
3. Never change the public handler signatures
4. Use the existing Postgres connection helpers - do not hand-roll a new pool

Rules:
- CORRECTNESS over SPEED
- EXISTING PATTERNS ARE LAW - match the codebase's query style exactly
- Every handler needs at least one passing test

Output Format:
### File: server/src/handlers/<name>.ts
` + "```ts" + `
[code]
` + "```" + `

### File: server/src/handlers/<name>.test.ts
` + "```ts" + `
[code]
` + "```" + `
`

// NewHandlers builds the Handlers actor: given the current server_files,
// fills in handler implementations with co-located tests, evaluated by
// typecheck + unit tests against a Postgres-linked container.
func NewHandlers(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return &actorengine.Actor{
		Config: actorengine.Config{BeamWidth: beamWidth, MaxDepth: maxDepth},
		Expander: llmExpander{
			client:    client,
			system:    handlersSystemPrompt,
			maxTokens: 8192,
			index:     index,
		},
		Eval: asEvaluator(execEval("cd server && npx tsc --noEmit && npx jest --ci")),
	}
}
