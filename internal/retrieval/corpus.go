package retrieval

import (
	"context"
	"fmt"

	"github.com/strata-search/strata/internal/model"
)

type chunkSearcher interface {
	HybridSearch(ctx context.Context, queryVec []float32, queryText string, k int) ([]model.Candidate, error)
	Count(ctx context.Context) (int64, error)
}

// CorpusIndex is the tier-1 view over the curated corpus. It is
// read-only from the query path; only ingestion writes to it.
type CorpusIndex struct {
	chunks chunkSearcher
}

func NewCorpusIndex(chunks chunkSearcher) *CorpusIndex {
	return &CorpusIndex{chunks: chunks}
}

func (c *CorpusIndex) Search(ctx context.Context, queryVec []float32, queryText string, k int) ([]model.Candidate, error) {
	results, err := c.chunks.HybridSearch(ctx, queryVec, queryText, k)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].Citation == "" {
			results[i].Citation = fmt.Sprintf("corpus: %s", results[i].Ref)
		}
	}
	return results, nil
}

func (c *CorpusIndex) Count(ctx context.Context) (int64, error) {
	return c.chunks.Count(ctx)
}
