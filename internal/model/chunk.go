package model

// Chunk is one indexed slice of a curated corpus source. ID is derived
// deterministically from (source_path, chunk_index) so re-ingesting
// identical content yields identical ids.
type Chunk struct {
	ID          string    `json:"id"`
	SourcePath  string    `json:"source_path"`
	ChunkIndex  int       `json:"chunk_index"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding"`
	ContentHash string    `json:"content_hash"`
	ModifiedAt  int64     `json:"modified_at"`
}

// SourceState is the stored hash/mtime pair for one source path, used
// for incremental re-ingestion.
type SourceState struct {
	SourcePath  string `json:"source_path"`
	ContentHash string `json:"content_hash"`
	ModifiedAt  int64  `json:"modified_at"`
}
