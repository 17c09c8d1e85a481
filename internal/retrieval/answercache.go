package retrieval

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/strata-search/strata/internal/model"
)

// AnswerCache holds complete query results keyed by query embedding.
// A lookup matches any cached entry whose query embedding has cosine
// similarity at or above the threshold, so paraphrased queries hit.
// Expiry is handled by the underlying TTL LRU.
type AnswerCache struct {
	cache     *expirable.LRU[string, *model.QueryCacheEntry]
	threshold float64
}

func NewAnswerCache(size int, ttl time.Duration, threshold float64) *AnswerCache {
	return &AnswerCache{
		cache:     expirable.NewLRU[string, *model.QueryCacheEntry](size, nil, ttl),
		threshold: threshold,
	}
}

// Get scans live entries for the closest query embedding; a miss is
// returned when nothing clears the similarity threshold.
func (a *AnswerCache) Get(queryVec []float32) (*model.QueryCacheEntry, bool) {
	var best *model.QueryCacheEntry
	bestScore := a.threshold
	for _, entry := range a.cache.Values() {
		score := Cosine(queryVec, entry.QueryEmbedding)
		if score >= bestScore {
			best = entry
			bestScore = score
		}
	}
	return best, best != nil
}

func (a *AnswerCache) Put(queryVec []float32, answer string, sources []model.FusedCandidate, stats model.RetrievalStats) {
	entry := &model.QueryCacheEntry{
		QueryEmbedding: queryVec,
		Answer:         answer,
		Sources:        sources,
		Stats:          stats,
		CreatedAt:      time.Now().UnixMilli(),
	}
	a.cache.Add(vectorKey(queryVec), entry)
}

func (a *AnswerCache) Len() int {
	return a.cache.Len()
}

func vectorKey(vec []float32) string {
	h := sha256.New()
	var buf [4]byte
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
