// Package actors implements the five concrete code-generation stages
// (Draft, Handlers, Index, Frontend, Edit). Every actor shares the same
// expand/evaluate mechanics from pkg/actorengine; they differ only in
// prompt, tools offered, and eval command.
package actors

import "strings"

// fileBlock is one "### File: path" fenced code block parsed out of an
// LLM response.
type fileBlock struct {
	Path    string
	Content string
}

// parseFileBlocks extracts `### File: path` / fenced-code-block pairs
// from content, the same markdown convention the teacher's worker
// actor uses for file output.
func parseFileBlocks(content string) []fileBlock {
	var blocks []fileBlock

	lines := strings.Split(content, "\n")
	var path string
	var body strings.Builder
	inFence := false

	flush := func() {
		if path != "" {
			blocks = append(blocks, fileBlock{Path: path, Content: strings.TrimSpace(body.String())})
		}
		path = ""
		body.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "### File:"), strings.HasPrefix(trimmed, "## File:"):
			flush()
			path = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(trimmed, "### File:"), "## File:"))
			inFence = false
		case strings.HasPrefix(trimmed, "```"):
			inFence = !inFence
		case inFence:
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	return blocks
}

// filesFromBlocks converts parsed blocks into a path->content map, as
// the actor-engine Expander contract requires.
func filesFromBlocks(blocks []fileBlock) map[string]string {
	out := make(map[string]string, len(blocks))
	for _, b := range blocks {
		out[b.Path] = b.Content
	}
	return out
}
