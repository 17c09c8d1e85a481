package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strata-search/strata/internal/model"
	appErr "github.com/strata-search/strata/internal/pkg/errors"
	"github.com/strata-search/strata/internal/repo"
)

func TestChunkRepoLifecycle(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	chunks := repo.NewChunkRepo(db)
	ctx := context.Background()
	require.NoError(t, chunks.DeleteBySource(ctx, "docs/a.md"))

	now := time.Now().UnixMilli()
	require.NoError(t, chunks.UpsertChunks(ctx, []*model.Chunk{
		{ID: "chunk-a-0", SourcePath: "docs/a.md", ChunkIndex: 0, Text: "go concurrency patterns", Embedding: testVector(0), ContentHash: "h1", ModifiedAt: now},
		{ID: "chunk-a-1", SourcePath: "docs/a.md", ChunkIndex: 1, Text: "channel basics", Embedding: testVector(1), ContentHash: "h1", ModifiedAt: now},
	}))
	require.NoError(t, chunks.UpsertSourceState(ctx, &model.SourceState{SourcePath: "docs/a.md", ContentHash: "h1", ModifiedAt: now}))

	state, err := chunks.GetSourceState(ctx, "docs/a.md")
	require.NoError(t, err)
	require.Equal(t, "h1", state.ContentHash)
	require.Equal(t, now, state.ModifiedAt)

	_, err = chunks.GetSourceState(ctx, "docs/missing.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// Upsert on the same id replaces the content.
	require.NoError(t, chunks.UpsertChunks(ctx, []*model.Chunk{
		{ID: "chunk-a-0", SourcePath: "docs/a.md", ChunkIndex: 0, Text: "revised text", Embedding: testVector(0), ContentHash: "h2", ModifiedAt: now + 1},
	}))
	require.NoError(t, chunks.UpsertSourceState(ctx, &model.SourceState{SourcePath: "docs/a.md", ContentHash: "h2", ModifiedAt: now + 1}))
	state, err = chunks.GetSourceState(ctx, "docs/a.md")
	require.NoError(t, err)
	require.Equal(t, "h2", state.ContentHash)

	require.NoError(t, chunks.UpdateSourceModifiedAt(ctx, "docs/a.md", now+5))
	state, err = chunks.GetSourceState(ctx, "docs/a.md")
	require.NoError(t, err)
	require.Equal(t, now+5, state.ModifiedAt)

	require.NoError(t, chunks.DeleteBySource(ctx, "docs/a.md"))
	_, err = chunks.GetSourceState(ctx, "docs/a.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestChunkRepoSourceStateWithoutChunks(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	chunks := repo.NewChunkRepo(db)
	ctx := context.Background()
	require.NoError(t, chunks.DeleteBySource(ctx, "docs/empty.md"))

	// A source that produced no chunks still keeps its state record.
	now := time.Now().UnixMilli()
	require.NoError(t, chunks.UpsertSourceState(ctx, &model.SourceState{SourcePath: "docs/empty.md", ContentHash: "h-empty", ModifiedAt: now}))
	state, err := chunks.GetSourceState(ctx, "docs/empty.md")
	require.NoError(t, err)
	require.Equal(t, "h-empty", state.ContentHash)

	require.NoError(t, chunks.DeleteBySource(ctx, "docs/empty.md"))
	_, err = chunks.GetSourceState(ctx, "docs/empty.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestChunkRepoHybridSearch(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	chunks := repo.NewChunkRepo(db)
	ctx := context.Background()
	require.NoError(t, chunks.DeleteBySource(ctx, "docs/search.md"))

	now := time.Now().UnixMilli()
	require.NoError(t, chunks.UpsertChunks(ctx, []*model.Chunk{
		{ID: "search-0", SourcePath: "docs/search.md", ChunkIndex: 0, Text: "goroutines and channels explained", Embedding: testVector(0), ContentHash: "h", ModifiedAt: now},
		{ID: "search-1", SourcePath: "docs/search.md", ChunkIndex: 1, Text: "http servers in practice", Embedding: testVector(1), ContentHash: "h", ModifiedAt: now},
	}))
	defer chunks.DeleteBySource(ctx, "docs/search.md")

	results, err := chunks.HybridSearch(ctx, testVector(0), "goroutines channels", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "search-0", results[0].ID)
	require.Equal(t, model.TierCorpus, results[0].Tier)
	require.Equal(t, "docs/search.md", results[0].Ref)
	// Vector match plus keyword match must outrank vector mismatch.
	require.Greater(t, results[0].Score, results[len(results)-1].Score)

	count, err := chunks.Count(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, int64(2))
}
