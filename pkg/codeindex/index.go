// Package codeindex maintains a searchable index of a generated
// application's source tree, so actors can retrieve relevant existing
// code instead of re-deriving it from scratch on every turn.
package codeindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Entry describes one indexed chunk of source: a declaration-sized
// slice of a file plus enough metadata to cite and re-locate it.
type Entry struct {
	Path      string
	Symbol    string
	Kind      string
	Signature string
	Content   string
	StartLine int
	EndLine   int
	Hash      string
}

// Result is a scored Entry returned from a search.
type Result struct {
	Entry Entry
	Score float64
}

const collectionName = "codeindex"

// Index is a chromem-go backed store over a set of Entry chunks, with
// keyword search as a fallback when semantic search turns up nothing
// (chromem-go's cosine similarity degrades on the hashed embeddings
// used here when the vocabulary barely overlaps).
type Index struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	byPath     map[string][]string // path -> doc IDs, for re-indexing a changed file
}

// New creates an empty in-memory index. No external embedding service
// is required: documents are embedded with a deterministic hashed
// bag-of-words vector (see hashEmbed), which is enough to rank chunks
// that share identifiers and keywords with the query.
func New() (*Index, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, hashEmbed)
	if err != nil {
		return nil, fmt.Errorf("codeindex: create collection: %w", err)
	}
	return &Index{db: db, collection: col, byPath: map[string][]string{}}, nil
}

// IndexFile chunks a file's content and (re-)indexes it, replacing any
// chunks previously indexed for the same path.
func (idx *Index) IndexFile(ctx context.Context, path, content string) error {
	entries := Chunk(path, content)

	idx.mu.Lock()
	oldIDs := idx.byPath[path]
	idx.mu.Unlock()
	if len(oldIDs) > 0 {
		if err := idx.collection.Delete(ctx, nil, nil, oldIDs...); err != nil {
			return fmt.Errorf("codeindex: delete stale chunks for %s: %w", path, err)
		}
	}

	if len(entries) == 0 {
		idx.mu.Lock()
		delete(idx.byPath, path)
		idx.mu.Unlock()
		return nil
	}

	docs := make([]chromem.Document, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for i, e := range entries {
		id := fmt.Sprintf("%s#%d", path, i)
		ids = append(ids, id)
		docs = append(docs, chromem.Document{
			ID:      id,
			Content: e.Content,
			Metadata: map[string]string{
				"path":      e.Path,
				"symbol":    e.Symbol,
				"kind":      e.Kind,
				"signature": e.Signature,
				"start":     fmt.Sprint(e.StartLine),
				"end":       fmt.Sprint(e.EndLine),
				"hash":      e.Hash,
			},
		})
	}
	if err := idx.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("codeindex: add documents for %s: %w", path, err)
	}

	idx.mu.Lock()
	idx.byPath[path] = ids
	idx.mu.Unlock()
	return nil
}

// Remove drops all chunks previously indexed for path.
func (idx *Index) Remove(ctx context.Context, path string) error {
	idx.mu.Lock()
	ids := idx.byPath[path]
	delete(idx.byPath, path)
	idx.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	return idx.collection.Delete(ctx, nil, nil, ids...)
}

// Search returns up to limit chunks relevant to query, trying semantic
// search first and falling back to keyword scoring if that comes back
// empty (mirrors the fallback order the teacher's own index searcher
// used: semantic signal when it has one, keyword overlap otherwise).
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	n := idx.collection.Count()
	if n == 0 {
		return nil, nil
	}

	nResults := limit * 3
	if nResults > n {
		nResults = n
	}
	if nResults > 0 {
		docs, err := idx.collection.Query(ctx, query, nResults, nil, nil)
		if err == nil && len(docs) > 0 {
			out := make([]Result, 0, len(docs))
			for _, d := range docs {
				out = append(out, Result{Entry: entryFromMetadata(d.Metadata, d.Content), Score: float64(d.Similarity)})
			}
			if len(out) > limit {
				out = out[:limit]
			}
			return out, nil
		}
	}

	return idx.keywordSearch(ctx, query, limit)
}

func (idx *Index) keywordSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	n := idx.collection.Count()
	docs, err := idx.collection.Query(ctx, "", n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("codeindex: keyword scan: %w", err)
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	scored := make([]Result, 0, len(docs))
	for _, d := range docs {
		score := 0.0
		symbol := strings.ToLower(d.Metadata["symbol"])
		sig := strings.ToLower(d.Metadata["signature"])
		content := strings.ToLower(d.Content)
		for _, t := range terms {
			if symbol == t {
				score += 10
			} else if strings.Contains(symbol, t) {
				score += 5
			}
			if strings.Contains(sig, t) {
				score += 3
			}
			score += float64(strings.Count(content, t))
		}
		if score > 0 {
			scored = append(scored, Result{Entry: entryFromMetadata(d.Metadata, d.Content), Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func entryFromMetadata(m map[string]string, content string) Entry {
	var start, end int
	fmt.Sscanf(m["start"], "%d", &start)
	fmt.Sscanf(m["end"], "%d", &end)
	return Entry{
		Path:      m["path"],
		Symbol:    m["symbol"],
		Kind:      m["kind"],
		Signature: m["signature"],
		Content:   content,
		StartLine: start,
		EndLine:   end,
		Hash:      m["hash"],
	}
}

// FormatResults renders results as a markdown block suitable for
// appending to an actor's prompt as retrieved context.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Relevant existing code\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "### %d. %s %s (%s:%d-%d)\n", i+1, r.Entry.Kind, r.Entry.Symbol, r.Entry.Path, r.Entry.StartLine, r.Entry.EndLine)
		if r.Entry.Signature != "" {
			fmt.Fprintf(&b, "`%s`\n\n", r.Entry.Signature)
		}
		fmt.Fprintf(&b, "```\n%s\n```\n\n", r.Entry.Content)
	}
	return b.String()
}

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// dim is the width of the hashed bag-of-words embedding. It has no
// relation to any model's real embedding dimensionality; it only needs
// to be large enough to keep hash collisions rare for typical chunk
// vocabularies.
const dim = 256

// hashEmbed turns text into a deterministic unit vector by hashing each
// token into a bucket, so that chunks sharing vocabulary score high
// under cosine similarity without calling out to an embedding model.
func hashEmbed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, dim)
	for _, tok := range tokenize(text) {
		h := fnv32(tok)
		vec[h%dim] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
