package actors

import (
	"github.com/appdotbuild/agent/pkg/actorengine"
	"github.com/appdotbuild/agent/pkg/codeindex"
	"github.com/appdotbuild/agent/pkg/llm"
)

// draftSystemPrompt mirrors the teacher worker prompt's register:
// numbered rules, a fixed output format, correctness-over-speed.
const draftSystemPrompt = `You are an expert full-stack engineer drafting the initial skeleton of a tRPC + React application from a natural-language description.

Your responsibilities:
1. Produce zod schemas, a drizzle schema, handler stubs, and a tRPC router index
2. Match the conventions of the existing template exactly
3. Leave handler bodies as typed stubs - Handlers fills them in later
4. Never invent endpoints the description does not call for

Rules:
- CORRECTNESS over SPEED
- The description is LAW - do not add unrequested features
- Every exported handler must typecheck even as a stub

Output Format:
### File: server/src/schema.ts
` + "```ts" + `
[code]
` + "```" + `

### File: server/src/db/schema.ts
` + "```ts" + `
[code]
` + "```" + `
`

// NewDraft builds the Draft actor: given a user prompt (and optional
// feedback), produces an initial server/ skeleton, evaluated by a
// TypeScript typecheck.
func NewDraft(client llm.AsyncLLM, beamWidth, maxDepth int, index *codeindex.Index) *actorengine.Actor {
	return &actorengine.Actor{
		Config: actorengine.Config{BeamWidth: beamWidth, MaxDepth: maxDepth},
		Expander: llmExpander{
			client:    client,
			system:    draftSystemPrompt,
			maxTokens: 8192,
			index:     index,
		},
		Eval: asEvaluator(execEval("cd server && npx tsc --noEmit")),
	}
}
