package model

const (
	FetchModeParallel        = "parallel"
	FetchModeOnLowConfidence = "on_low_confidence"
)

type QueryRequest struct {
	QueryText           string `json:"query_text"`
	TopK                int    `json:"top_k"`
	UseCache            bool   `json:"use_cache"`
	EmbedderID          string `json:"embedder_id"`
	EnableExternalFetch bool   `json:"enable_external_fetch"`
	FetchMode           string `json:"fetch_mode"`
}

type QueryResponse struct {
	Answer         string         `json:"answer"`
	Sources        []SourceRef    `json:"sources"`
	RetrievalStats RetrievalStats `json:"retrieval_stats"`
}

type SourceRef struct {
	ID       string  `json:"id"`
	Ref      string  `json:"source_path_or_url"`
	Tier     Tier    `json:"tier"`
	Score    float64 `json:"score"`
	Citation string  `json:"citation"`
}

// RetrievalStats is computed fresh per query and never persisted
// beyond the response or its answer-cache entry.
type RetrievalStats struct {
	Tier1Count int  `json:"tier1_count"`
	Tier2Count int  `json:"tier2_count"`
	Tier3Count int  `json:"tier3_count"`
	CacheHit   bool `json:"cache_hit"`
}

// QueryCacheEntry is a complete cached query result, matched by cosine
// similarity of query embeddings rather than exact text equality.
type QueryCacheEntry struct {
	QueryEmbedding []float32        `json:"query_embedding"`
	Answer         string           `json:"answer"`
	Sources        []FusedCandidate `json:"sources"`
	Stats          RetrievalStats   `json:"retrieval_stats"`
	CreatedAt      int64            `json:"created_at"`
}
