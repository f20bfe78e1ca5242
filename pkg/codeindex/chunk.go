package codeindex

import (
	"regexp"
	"strings"
)

// declRe matches a line that plausibly starts a new top-level
// declaration across the languages a generated application's server
// and frontend are written in (TypeScript/tRPC, SQL migrations, React
// components) — deliberately permissive rather than a real parser,
// since the indexed tree is never Go.
var declRe = regexp.MustCompile(`^(export\s+)?(default\s+)?(async\s+)?(function|class|interface|type|const|let|enum)\s+([A-Za-z0-9_]+)`)

// Chunk splits a file's content into declaration-sized entries. Lines
// before the first recognized declaration are kept as a single leading
// chunk (imports, file-level comments) so nothing is dropped from the
// index even when a file doesn't match declRe at all.
func Chunk(path, content string) []Entry {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return nil
	}

	var entries []Entry
	start := 0
	symbol, kind, sig := "", "", ""

	flush := func(end int) {
		if end <= start {
			return
		}
		body := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(body) == "" {
			return
		}
		entries = append(entries, Entry{
			Path:      path,
			Symbol:    symbol,
			Kind:      kind,
			Signature: sig,
			Content:   body,
			StartLine: start + 1,
			EndLine:   end,
			Hash:      hashOf(body),
		})
	}

	for i, line := range lines {
		m := declRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		flush(i)
		start = i
		kind = m[4]
		symbol = m[5]
		sig = strings.TrimSpace(line)
	}
	flush(len(lines))

	if kind == "" {
		entries = []Entry{{
			Path:      path,
			Symbol:    path,
			Kind:      "file",
			Content:   content,
			StartLine: 1,
			EndLine:   len(lines),
			Hash:      hashOf(content),
		}}
	}
	return entries
}
