package codeindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaSrc = `import { z } from "zod";

export const todoSchema = z.object({
  id: z.number(),
  title: z.string(),
});

export type Todo = z.infer<typeof todoSchema>;
`

const routerSrc = `import { publicProcedure, router } from "./trpc";

export const todoRouter = router({
  list: publicProcedure.query(() => []),
});
`

func TestChunk_SplitsOnTopLevelDeclarations(t *testing.T) {
	entries := Chunk("server/src/schema.ts", schemaSrc)
	require.Len(t, entries, 3)
	assert.Equal(t, "todoSchema", entries[1].Symbol)
	assert.Equal(t, "const", entries[1].Kind)
	assert.Equal(t, "Todo", entries[2].Symbol)
	assert.Equal(t, "type", entries[2].Kind)
}

func TestChunk_FileWithNoDeclarationsIsOneChunk(t *testing.T) {
	entries := Chunk("server/src/notes.txt", "just some notes\nnothing special")
	require.Len(t, entries, 1)
	assert.Equal(t, "file", entries[0].Kind)
}

func TestIndex_SearchFindsIndexedSymbolByName(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.IndexFile(ctx, "server/src/schema.ts", schemaSrc))
	require.NoError(t, idx.IndexFile(ctx, "server/src/router.ts", routerSrc))

	results, err := idx.Search(ctx, "todoSchema", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "todoSchema", results[0].Entry.Symbol)
}

func TestIndex_ReindexingFileReplacesStaleChunks(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.IndexFile(ctx, "server/src/schema.ts", schemaSrc))
	require.NoError(t, idx.IndexFile(ctx, "server/src/schema.ts", "export const onlyOne = 1;\n"))

	results, err := idx.Search(ctx, "todoSchema", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "todoSchema", r.Entry.Symbol, "stale chunk from the first version should have been deleted")
	}
}

func TestIndex_RemoveDropsAllChunksForPath(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.IndexFile(ctx, "server/src/schema.ts", schemaSrc))
	require.NoError(t, idx.Remove(ctx, "server/src/schema.ts"))

	assert.Equal(t, 0, idx.collection.Count())
}

func TestFormatResults_EmptyIsEmptyString(t *testing.T) {
	assert.Equal(t, "", FormatResults(nil))
}
