package errcode

const (
	ErrUnknown = 20000000 + iota
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
	ErrEmbedderUnavailable
	ErrRetrievalFailed
	ErrIngestFailed
)
