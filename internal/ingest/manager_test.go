package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strata-search/strata/internal/config"
	"github.com/strata-search/strata/internal/model"
	appErr "github.com/strata-search/strata/internal/pkg/errors"
)

type memoryChunkStore struct {
	mu      sync.Mutex
	chunks  map[string]*model.Chunk
	sources map[string]*model.SourceState
}

func newMemoryChunkStore() *memoryChunkStore {
	return &memoryChunkStore{
		chunks:  map[string]*model.Chunk{},
		sources: map[string]*model.SourceState{},
	}
}

func (s *memoryChunkStore) UpsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		copied := *c
		s.chunks[c.ID] = &copied
	}
	return nil
}

func (s *memoryChunkStore) DeleteBySource(ctx context.Context, sourcePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.SourcePath == sourcePath {
			delete(s.chunks, id)
		}
	}
	delete(s.sources, sourcePath)
	return nil
}

func (s *memoryChunkStore) GetSourceState(ctx context.Context, sourcePath string) (*model.SourceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sources[sourcePath]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (s *memoryChunkStore) UpsertSourceState(ctx context.Context, state *model.SourceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *state
	s.sources[state.SourcePath] = &copied
	return nil
}

func (s *memoryChunkStore) UpdateSourceModifiedAt(ctx context.Context, sourcePath string, modifiedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.sources[sourcePath]; ok {
		state.ModifiedAt = modifiedAt
	}
	return nil
}

func (s *memoryChunkStore) bySource(sourcePath string) []*model.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Chunk
	for _, c := range s.chunks {
		if c.SourcePath == sourcePath {
			out = append(out, c)
		}
	}
	return out
}

func (s *memoryChunkStore) sourceState(sourcePath string) *model.SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sources[sourcePath]
	if !ok {
		return nil
	}
	copied := *state
	return &copied
}

type countingEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (e *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, fmt.Errorf("embed backend rejected text")
	}
	return []float32{1, 0, 0}, nil
}

func (e *countingEmbedder) ModelName() string {
	return "test-model"
}

func (e *countingEmbedder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func newTestManager(t *testing.T, dir string) (*Manager, *memoryChunkStore, *countingEmbedder) {
	t.Helper()
	store := newMemoryChunkStore()
	embedder := &countingEmbedder{}
	manager, err := NewManager(store, embedder, config.IngestConfig{Dir: dir, PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(manager.Close)
	return manager, store, embedder
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestDirNewAndUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# A\n\nalpha body")
	writeFile(t, filepath.Join(dir, "sub", "b.md"), "# B\n\nbeta body")
	writeFile(t, filepath.Join(dir, "ignore.png"), "binary")

	manager, store, embedder := newTestManager(t, dir)

	report, err := manager.IngestDir(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.NewFiles)
	require.Equal(t, 0, report.UnchangedFiles)
	require.Equal(t, report.ChunksWritten, embedder.count())
	require.Len(t, store.bySource("a.md"), 1)
	require.Len(t, store.bySource("sub/b.md"), 1)

	// Second run: nothing changed, nothing re-embedded.
	report, err = manager.IngestDir(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, report.NewFiles)
	require.Equal(t, 2, report.UnchangedFiles)
	require.Equal(t, 0, report.ChunksWritten)
}

func TestIngestDirOneBadSourceDoesNotAbortRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.md"), "# Good\n\nfine body")
	writeFile(t, filepath.Join(dir, "bad.md"), "# Bad\n\npoison body")

	manager, store, embedder := newTestManager(t, dir)
	embedder.failOn = "poison"

	report, err := manager.IngestDir(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.NewFiles)
	require.Equal(t, 1, report.ErrorFiles)
	require.Len(t, store.bySource("good.md"), 1)
	require.Empty(t, store.bySource("bad.md"))

	// The failed file is retried next run; the good one stays current.
	report, err = manager.IngestDir(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.UnchangedFiles)
	require.Equal(t, 1, report.ErrorFiles)
}

func TestIngestEmptyFileUnchangedOnRerun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.md")
	writeFile(t, path, "")
	manager, store, embedder := newTestManager(t, dir)

	outcome, written, err := manager.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, model.IngestNew, outcome)
	require.Equal(t, 0, written)
	require.Empty(t, store.bySource("empty.md"))
	require.NotNil(t, store.sourceState("empty.md"))

	outcome, _, err = manager.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, model.IngestUnchanged, outcome)

	// mtime drift on identical bytes still resolves through the hash.
	future := time.Now().Add(5 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	outcome, _, err = manager.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, model.IngestUnchanged, outcome)
	require.Equal(t, 0, embedder.count())
}

func TestIngestFileContentChangeReplacesChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	writeFile(t, path, "# A\n\nfirst version")
	manager, store, _ := newTestManager(t, dir)

	outcome, _, err := manager.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, model.IngestNew, outcome)
	before := store.bySource("a.md")
	require.Len(t, before, 1)

	// Force a different mtime so the fast path does not mask the edit.
	writeFile(t, path, "# A\n\nsecond version with different text")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	outcome, written, err := manager.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, model.IngestChanged, outcome)
	require.Greater(t, written, 0)

	after := store.bySource("a.md")
	require.Len(t, after, 1)
	require.Contains(t, after[0].Text, "second version")
	require.NotEqual(t, before[0].ContentHash, after[0].ContentHash)
	// Deterministic chunk IDs: same source and index, same row.
	require.Equal(t, before[0].ID, after[0].ID)
}

func TestIngestFileMtimeOnlyChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	writeFile(t, path, "# A\n\nstable content")
	manager, store, embedder := newTestManager(t, dir)

	_, _, err := manager.IngestFile(context.Background(), path)
	require.NoError(t, err)
	embedsAfterFirst := embedder.count()

	future := time.Now().Add(5 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	outcome, written, err := manager.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, model.IngestUnchanged, outcome)
	require.Equal(t, 0, written)
	// Same bytes never go back to the embedder.
	require.Equal(t, embedsAfterFirst, embedder.count())
	require.Equal(t, future.UnixMilli(), store.sourceState("a.md").ModifiedAt)
}

func TestRemoveSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	writeFile(t, path, "# A\n\nbody")
	manager, store, _ := newTestManager(t, dir)

	_, _, err := manager.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, store.bySource("a.md"), 1)

	require.NoError(t, manager.RemoveSource(context.Background(), path))
	require.Empty(t, store.bySource("a.md"))
	require.Nil(t, store.sourceState("a.md"))
}

func TestChunkIDDeterministic(t *testing.T) {
	require.Equal(t, chunkID("docs/a.md", 0), chunkID("docs/a.md", 0))
	require.NotEqual(t, chunkID("docs/a.md", 0), chunkID("docs/a.md", 1))
	require.NotEqual(t, chunkID("docs/a.md", 0), chunkID("docs/b.md", 0))
}
