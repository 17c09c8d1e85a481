package job

import (
	"context"

	"github.com/strata-search/strata/internal/ingest"
)

// ReingestJob re-synchronizes the corpus directory on a schedule. It is
// the safety net for edits the filesystem watcher missed; unchanged
// files cost one stat each.
type ReingestJob struct {
	manager *ingest.Manager
}

func NewReingestJob(manager *ingest.Manager) *ReingestJob {
	return &ReingestJob{manager: manager}
}

func (j *ReingestJob) Name() string {
	return "corpus_reingest"
}

func (j *ReingestJob) Run(ctx context.Context) error {
	if j.manager == nil {
		return nil
	}
	_, err := j.manager.IngestDir(ctx)
	return err
}
