package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/strata-search/strata/internal/retrieval"
)

// KnowledgeSweepJob removes expired rows from the knowledge cache so
// dead entries stop costing index space. Expired rows are already
// invisible to search; this reclaims them.
type KnowledgeSweepJob struct {
	knowledge *retrieval.KnowledgeCache
}

func NewKnowledgeSweepJob(knowledge *retrieval.KnowledgeCache) *KnowledgeSweepJob {
	return &KnowledgeSweepJob{knowledge: knowledge}
}

func (j *KnowledgeSweepJob) Name() string {
	return "knowledge_sweep"
}

func (j *KnowledgeSweepJob) Run(ctx context.Context) error {
	if j.knowledge == nil {
		return nil
	}
	removed, err := j.knowledge.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired knowledge entries removed", zap.Int64("count", removed))
	}
	return nil
}
