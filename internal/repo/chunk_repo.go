package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/strata-search/strata/internal/model"
	"github.com/strata-search/strata/internal/pkg/dbutil"
	appErr "github.com/strata-search/strata/internal/pkg/errors"
)

// ChunkRepo persists corpus chunks. Search combines vector similarity
// and keyword relevance in one query; the blended score is what the
// retrieval layer sees.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) UpsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	const query = `
		INSERT INTO corpus_chunks (id, source_path, chunk_index, content, embedding, content_hash, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			content_hash = EXCLUDED.content_hash,
			modified_at = EXCLUDED.modified_at
	`
	for _, chunk := range chunks {
		_, err := r.db.ExecContext(ctx, query,
			chunk.ID,
			chunk.SourcePath,
			chunk.ChunkIndex,
			chunk.Text,
			pgvector.NewVector(chunk.Embedding),
			chunk.ContentHash,
			chunk.ModifiedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepo) DeleteBySource(ctx context.Context, sourcePath string) error {
	where := map[string]interface{}{"source_path": sourcePath}
	for _, table := range []string{"corpus_chunks", "corpus_sources"} {
		sqlStr, args, err := builder.BuildDelete(table, where)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return nil
}

// GetSourceState returns the stored hash/mtime pair for a source. The
// record lives apart from the chunk rows so a source that produced zero
// chunks is still remembered across runs.
func (r *ChunkRepo) GetSourceState(ctx context.Context, sourcePath string) (*model.SourceState, error) {
	const query = `
		SELECT content_hash, modified_at
		FROM corpus_sources
		WHERE source_path = $1
	`
	row := r.db.QueryRowContext(ctx, query, sourcePath)
	state := &model.SourceState{SourcePath: sourcePath}
	if err := row.Scan(&state.ContentHash, &state.ModifiedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return state, nil
}

func (r *ChunkRepo) UpsertSourceState(ctx context.Context, state *model.SourceState) error {
	const query = `
		INSERT INTO corpus_sources (source_path, content_hash, modified_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_path) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			modified_at = EXCLUDED.modified_at
	`
	_, err := r.db.ExecContext(ctx, query, state.SourcePath, state.ContentHash, state.ModifiedAt)
	return err
}

func (r *ChunkRepo) UpdateSourceModifiedAt(ctx context.Context, sourcePath string, modifiedAt int64) error {
	where := map[string]interface{}{"source_path": sourcePath}
	update := map[string]interface{}{"modified_at": modifiedAt}
	sqlStr, args, err := builder.BuildUpdate("corpus_sources", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// HybridSearch blends cosine similarity against the query vector with
// full-text rank against the query text. The weighting lives in SQL so
// postgres can order without a second pass.
func (r *ChunkRepo) HybridSearch(ctx context.Context, queryVec []float32, queryText string, k int) ([]model.Candidate, error) {
	const query = `
		SELECT id, source_path, content,
			(0.7 * (1 - (embedding <=> $1))
			 + 0.3 * LEAST(COALESCE(ts_rank(tsv, plainto_tsquery('english', $2)), 0), 1)) AS score
		FROM corpus_chunks
		WHERE embedding IS NOT NULL
		ORDER BY score DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(queryVec), queryText, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.ID, &c.Ref, &c.Text, &c.Score); err != nil {
			return nil, err
		}
		c.Tier = model.TierCorpus
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *ChunkRepo) Count(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corpus_chunks`)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
