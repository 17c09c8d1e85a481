package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/strata-search/strata/internal/embedding"
	"github.com/strata-search/strata/internal/model"
)

type knowledgeStore interface {
	Upsert(ctx context.Context, entry *model.CacheEntry) (bool, *model.CacheEntry, error)
	Search(ctx context.Context, queryVec []float32, k int, now int64) ([]model.Candidate, error)
	DeleteExpired(ctx context.Context, cutoff int64) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type queryEmbedder interface {
	Embed(ctx context.Context, text string, embedderID string, taskType string) ([]float32, error)
}

// KnowledgeCache is the tier-2 store of previously fetched external
// content: deduplicated by content hash, bounded by TTL, searchable
// like the corpus.
type KnowledgeCache struct {
	store    knowledgeStore
	embedder queryEmbedder
	ttl      time.Duration
	now      func() time.Time
}

func NewKnowledgeCache(store knowledgeStore, embedder queryEmbedder, ttl time.Duration) *KnowledgeCache {
	return &KnowledgeCache{
		store:    store,
		embedder: embedder,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (k *KnowledgeCache) Search(ctx context.Context, queryVec []float32, limit int) ([]model.Candidate, error) {
	return k.store.Search(ctx, queryVec, limit, k.now().UnixMilli())
}

// Upsert stores one piece of fetched content. Byte-identical content
// under any URL maps to the same entry, whose access count is bumped
// instead of inserting twice. The returned entry carries the embedding
// computed here so callers can score it against the current query.
func (k *KnowledgeCache) Upsert(ctx context.Context, content, url string, trust float64) (*model.CacheEntry, bool, error) {
	hash := sha256.Sum256([]byte(content))
	contentHash := hex.EncodeToString(hash[:])

	vec, err := k.embedder.Embed(ctx, content, "", embedding.TaskDocument)
	if err != nil {
		return nil, false, err
	}
	now := k.now()
	entry := &model.CacheEntry{
		ID:          uuid.NewString(),
		URL:         url,
		ContentHash: contentHash,
		Text:        content,
		Embedding:   vec,
		TrustScore:  trust,
		Citation:    fmt.Sprintf("%s (retrieved %s)", url, now.Format("2006-01-02")),
		FirstSeenAt: now.UnixMilli(),
		ExpiresAt:   now.Add(k.ttl).UnixMilli(),
	}
	inserted, stored, err := k.store.Upsert(ctx, entry)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		logutil.GetLogger(ctx).Debug("knowledge entry deduplicated",
			zap.String("content_hash", contentHash),
			zap.Int64("access_count", stored.AccessCount),
		)
	}
	stored.Embedding = vec
	return stored, inserted, nil
}

// SweepExpired physically deletes entries past their expiry. Search
// already excludes them, so this only reclaims space.
func (k *KnowledgeCache) SweepExpired(ctx context.Context) (int64, error) {
	return k.store.DeleteExpired(ctx, k.now().UnixMilli())
}

func (k *KnowledgeCache) Count(ctx context.Context) (int64, error) {
	return k.store.Count(ctx)
}
