package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/strata-search/strata/internal/model"
)

// KnowledgeRepo persists fetched external content. At most one row
// exists per content hash; the upsert is a single atomic statement so
// concurrent queries racing on the same hash cannot double-insert.
type KnowledgeRepo struct {
	db *sql.DB
}

func NewKnowledgeRepo(db *sql.DB) *KnowledgeRepo {
	return &KnowledgeRepo{db: db}
}

// Upsert inserts the entry or, when a live row with the same content
// hash exists, bumps its access count instead. An expired row is
// overwritten wholesale and its access count restarts at 1. Returns
// whether a new logical insert happened and the surviving row.
func (r *KnowledgeRepo) Upsert(ctx context.Context, entry *model.CacheEntry) (bool, *model.CacheEntry, error) {
	const query = `
		INSERT INTO knowledge_entries
			(id, url, content_hash, content, embedding, trust_score, citation, first_seen_at, expires_at, access_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		ON CONFLICT (content_hash) DO UPDATE SET
			url          = CASE WHEN knowledge_entries.expires_at < EXCLUDED.first_seen_at THEN EXCLUDED.url ELSE knowledge_entries.url END,
			content      = CASE WHEN knowledge_entries.expires_at < EXCLUDED.first_seen_at THEN EXCLUDED.content ELSE knowledge_entries.content END,
			embedding    = CASE WHEN knowledge_entries.expires_at < EXCLUDED.first_seen_at THEN EXCLUDED.embedding ELSE knowledge_entries.embedding END,
			trust_score  = CASE WHEN knowledge_entries.expires_at < EXCLUDED.first_seen_at THEN EXCLUDED.trust_score ELSE knowledge_entries.trust_score END,
			citation     = CASE WHEN knowledge_entries.expires_at < EXCLUDED.first_seen_at THEN EXCLUDED.citation ELSE knowledge_entries.citation END,
			first_seen_at = CASE WHEN knowledge_entries.expires_at < EXCLUDED.first_seen_at THEN EXCLUDED.first_seen_at ELSE knowledge_entries.first_seen_at END,
			expires_at   = CASE WHEN knowledge_entries.expires_at < EXCLUDED.first_seen_at THEN EXCLUDED.expires_at ELSE knowledge_entries.expires_at END,
			access_count = CASE WHEN knowledge_entries.expires_at < EXCLUDED.first_seen_at THEN 1 ELSE knowledge_entries.access_count + 1 END
		RETURNING (xmax = 0) AS inserted, id, url, citation, first_seen_at, expires_at, access_count
	`
	row := r.db.QueryRowContext(ctx, query,
		entry.ID,
		entry.URL,
		entry.ContentHash,
		entry.Text,
		pgvector.NewVector(entry.Embedding),
		entry.TrustScore,
		entry.Citation,
		entry.FirstSeenAt,
		entry.ExpiresAt,
	)
	stored := &model.CacheEntry{
		ContentHash: entry.ContentHash,
		Text:        entry.Text,
		TrustScore:  entry.TrustScore,
	}
	var inserted bool
	if err := row.Scan(&inserted, &stored.ID, &stored.URL, &stored.Citation, &stored.FirstSeenAt, &stored.ExpiresAt, &stored.AccessCount); err != nil {
		return false, nil, err
	}
	return inserted, stored, nil
}

// Search returns live entries by cosine similarity. Rows past their
// expiry are filtered out here; physical deletion is the sweep job's
// concern.
func (r *KnowledgeRepo) Search(ctx context.Context, queryVec []float32, k int, now int64) ([]model.Candidate, error) {
	const query = `
		SELECT id, url, content, citation, (1 - (embedding <=> $1)) AS score
		FROM knowledge_entries
		WHERE expires_at > $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(queryVec), now, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.ID, &c.Ref, &c.Text, &c.Citation, &c.Score); err != nil {
			return nil, err
		}
		c.Tier = model.TierKnowledge
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *KnowledgeRepo) DeleteExpired(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM knowledge_entries WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *KnowledgeRepo) Count(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_entries WHERE expires_at > EXTRACT(EPOCH FROM now()) * 1000`)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
