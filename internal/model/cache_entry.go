package model

// CacheEntry is one deduplicated piece of previously fetched external
// content. At most one entry exists per content hash.
type CacheEntry struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ContentHash string    `json:"content_hash"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding"`
	TrustScore  float64   `json:"trust_score"`
	Citation    string    `json:"citation"`
	FirstSeenAt int64     `json:"first_seen_at"`
	ExpiresAt   int64     `json:"expires_at"`
	AccessCount int64     `json:"access_count"`
}
