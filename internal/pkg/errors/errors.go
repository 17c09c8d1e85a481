package errors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalid             = errors.New("invalid")
	ErrConflict            = errors.New("conflict")
	ErrTooMany             = errors.New("too many requests")
	ErrInternal            = errors.New("internal")
	ErrEmbedderUnavailable = errors.New("embedder unavailable")
	ErrCalibrationMissing  = errors.New("calibration matrix missing")
	ErrTierUnavailable     = errors.New("tier unavailable")
	ErrAllTiersFailed      = errors.New("all retrieval tiers failed")
	ErrFetchFailed         = errors.New("external fetch failed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
