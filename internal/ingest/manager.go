package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/strata-search/strata/internal/ai"
	"github.com/strata-search/strata/internal/config"
	"github.com/strata-search/strata/internal/embedding"
	"github.com/strata-search/strata/internal/model"
	appErr "github.com/strata-search/strata/internal/pkg/errors"
)

type chunkStore interface {
	UpsertChunks(ctx context.Context, chunks []*model.Chunk) error
	DeleteBySource(ctx context.Context, sourcePath string) error
	GetSourceState(ctx context.Context, sourcePath string) (*model.SourceState, error)
	UpsertSourceState(ctx context.Context, state *model.SourceState) error
	UpdateSourceModifiedAt(ctx context.Context, sourcePath string, modifiedAt int64) error
}

// Manager walks the corpus directory and keeps the chunk store in sync
// with it. Unchanged files are detected by mtime first and content hash
// second, so a full re-run over an unchanged corpus does no embedding.
type Manager struct {
	store    chunkStore
	embedder ai.IEmbedder
	chunker  *Chunker
	pool     *ants.Pool
	dir      string
}

func NewManager(store chunkStore, embedder ai.IEmbedder, cfg config.IngestConfig) (*Manager, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create ingest pool: %w", err)
	}
	return &Manager{
		store:    store,
		embedder: embedder,
		chunker:  NewChunker(),
		pool:     pool,
		dir:      cfg.Dir,
	}, nil
}

func (m *Manager) Close() {
	m.pool.Release()
}

// IngestDir synchronizes every markdown and text file under the corpus
// directory. Files are processed concurrently; one bad file never stops
// the rest.
func (m *Manager) IngestDir(ctx context.Context) (*model.IngestReport, error) {
	logger := logutil.GetLogger(ctx)
	var paths []string
	err := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isCorpusFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir %s: %w", m.dir, err)
	}
	logger.Info("starting corpus ingestion", zap.String("dir", m.dir), zap.Int("files", len(paths)))

	report := &model.IngestReport{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, path := range paths {
		path := path
		wg.Add(1)
		if err := m.pool.Submit(func() {
			defer wg.Done()
			outcome, written, err := m.IngestFile(ctx, path)
			if err != nil {
				logger.Error("ingest file failed", zap.String("path", path), zap.Error(err))
				outcome = model.IngestError
			}
			mu.Lock()
			report.Record(outcome)
			report.ChunksWritten += written
			mu.Unlock()
		}); err != nil {
			wg.Done()
			mu.Lock()
			report.Record(model.IngestError)
			mu.Unlock()
			logger.Error("submit ingest task failed", zap.String("path", path), zap.Error(err))
		}
	}
	wg.Wait()
	logger.Info("corpus ingestion finished",
		zap.Int("new", report.NewFiles),
		zap.Int("changed", report.ChangedFiles),
		zap.Int("unchanged", report.UnchangedFiles),
		zap.Int("errors", report.ErrorFiles),
		zap.Int("chunks", report.ChunksWritten),
	)
	return report, nil
}

// IngestFile brings a single file up to date in the chunk store and
// reports whether it was new, changed, or already current.
func (m *Manager) IngestFile(ctx context.Context, path string) (model.IngestOutcome, int, error) {
	sourcePath := m.sourcePath(path)
	info, err := os.Stat(path)
	if err != nil {
		return model.IngestError, 0, err
	}
	mtime := info.ModTime().UnixMilli()

	state, err := m.store.GetSourceState(ctx, sourcePath)
	known := err == nil
	if err != nil && !appErr.IsNotFound(err) {
		return model.IngestError, 0, err
	}
	if known && state.ModifiedAt == mtime {
		return model.IngestUnchanged, 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.IngestError, 0, err
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if known && state.ContentHash == hash {
		// mtime moved but content did not; refresh the stored mtime so
		// the fast path works next run.
		return model.IngestUnchanged, 0, m.store.UpdateSourceModifiedAt(ctx, sourcePath, mtime)
	}

	pieces := m.chunker.Chunk(ctx, string(data))
	chunks := make([]*model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		vec, err := m.embedder.Embed(ctx, piece, embedding.TaskDocument)
		if err != nil {
			return model.IngestError, 0, fmt.Errorf("embed chunk %d of %s: %w", i, sourcePath, err)
		}
		chunks = append(chunks, &model.Chunk{
			ID:          chunkID(sourcePath, i),
			SourcePath:  sourcePath,
			ChunkIndex:  i,
			Text:        piece,
			Embedding:   vec,
			ContentHash: hash,
			ModifiedAt:  mtime,
		})
	}

	// Replace rather than merge: a shrinking file must not leave stale
	// trailing chunks behind.
	if err := m.store.DeleteBySource(ctx, sourcePath); err != nil {
		return model.IngestError, 0, err
	}
	if err := m.store.UpsertChunks(ctx, chunks); err != nil {
		return model.IngestError, 0, err
	}
	// The source record is kept even when chunking produced nothing, so
	// an empty file still counts as unchanged on the next run.
	err = m.store.UpsertSourceState(ctx, &model.SourceState{
		SourcePath:  sourcePath,
		ContentHash: hash,
		ModifiedAt:  mtime,
	})
	if err != nil {
		return model.IngestError, 0, err
	}
	if known {
		return model.IngestChanged, len(chunks), nil
	}
	return model.IngestNew, len(chunks), nil
}

// RemoveSource drops every chunk belonging to a deleted file.
func (m *Manager) RemoveSource(ctx context.Context, path string) error {
	return m.store.DeleteBySource(ctx, m.sourcePath(path))
}

func (m *Manager) sourcePath(path string) string {
	if rel, err := filepath.Rel(m.dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// chunkID derives a stable UUID from the source path and chunk index so
// repeated ingestion of the same content upserts instead of duplicating.
func chunkID(sourcePath string, index int) string {
	name := fmt.Sprintf("%s#%d", sourcePath, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func isCorpusFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}
