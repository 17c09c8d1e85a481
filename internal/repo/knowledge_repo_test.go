package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/strata-search/strata/internal/model"
	"github.com/strata-search/strata/internal/repo"
)

func testEntry(hash string, axis int, firstSeen, expires int64) *model.CacheEntry {
	return &model.CacheEntry{
		ID:          uuid.NewString(),
		URL:         fmt.Sprintf("https://example.com/%s", hash),
		ContentHash: hash,
		Text:        "content " + hash,
		Embedding:   testVector(axis),
		TrustScore:  0.5,
		Citation:    fmt.Sprintf("https://example.com/%s (retrieved 2026-08-29)", hash),
		FirstSeenAt: firstSeen,
		ExpiresAt:   expires,
	}
}

func TestKnowledgeRepoUpsertDeduplicates(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	knowledge := repo.NewKnowledgeRepo(db)
	ctx := context.Background()
	now := time.Now().UnixMilli()
	hash := uuid.NewString()
	defer knowledge.DeleteExpired(ctx, now+time.Hour.Milliseconds()*2)

	first := testEntry(hash, 0, now, now+time.Hour.Milliseconds())
	inserted, stored, err := knowledge.Upsert(ctx, first)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, int64(1), stored.AccessCount)

	// Same content hash while the row is live: dedup, access bump.
	second := testEntry(hash, 0, now+1, now+1+time.Hour.Milliseconds())
	inserted, stored, err = knowledge.Upsert(ctx, second)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, first.ID, stored.ID)
	require.Equal(t, int64(2), stored.AccessCount)
	require.Equal(t, first.ExpiresAt, stored.ExpiresAt)
}

func TestKnowledgeRepoExpiredRowRefreshed(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	knowledge := repo.NewKnowledgeRepo(db)
	ctx := context.Background()
	now := time.Now().UnixMilli()
	hash := uuid.NewString()
	defer knowledge.DeleteExpired(ctx, now+time.Hour.Milliseconds()*2)

	expired := testEntry(hash, 0, now-2000, now-1000)
	_, _, err := knowledge.Upsert(ctx, expired)
	require.NoError(t, err)

	fresh := testEntry(hash, 0, now, now+time.Hour.Milliseconds())
	inserted, stored, err := knowledge.Upsert(ctx, fresh)
	require.NoError(t, err)
	// Physically an update, logically a fresh entry.
	require.False(t, inserted)
	require.Equal(t, int64(1), stored.AccessCount)
	require.Equal(t, fresh.ExpiresAt, stored.ExpiresAt)
	require.Equal(t, fresh.FirstSeenAt, stored.FirstSeenAt)
}

func TestKnowledgeRepoSearchSkipsExpired(t *testing.T) {
	db, cleanup := openTestDB(t)
	defer cleanup()
	knowledge := repo.NewKnowledgeRepo(db)
	ctx := context.Background()
	now := time.Now().UnixMilli()
	defer knowledge.DeleteExpired(ctx, now+time.Hour.Milliseconds()*2)

	liveHash := uuid.NewString()
	deadHash := uuid.NewString()
	_, _, err := knowledge.Upsert(ctx, testEntry(liveHash, 2, now, now+time.Hour.Milliseconds()))
	require.NoError(t, err)
	_, _, err = knowledge.Upsert(ctx, testEntry(deadHash, 2, now-2000, now-1000))
	require.NoError(t, err)

	results, err := knowledge.Search(ctx, testVector(2), 10, now)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, c := range results {
		require.NotEqual(t, "content "+deadHash, c.Text)
		require.Equal(t, model.TierKnowledge, c.Tier)
	}

	removed, err := knowledge.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(1))
}
