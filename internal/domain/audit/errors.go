package audit

import "errors"

var (
	// ErrChecklistNotFound indicates no checklist exists for the key.
	ErrChecklistNotFound = errors.New("checklist not found")
	// ErrNotOpen indicates no audit session is open for the key.
	ErrNotOpen = errors.New("checklist not open")
	// ErrNotSaved indicates the checklist has never been flushed.
	ErrNotSaved = errors.New("checklist not saved")
	// ErrFlushInProgress indicates a flush is already outstanding for the key.
	ErrFlushInProgress = errors.New("flush already in progress")
	// ErrInvalidKey indicates a malformed checklist key.
	ErrInvalidKey = errors.New("invalid checklist key")
	// ErrInvalidQuality indicates a rating outside the scale.
	ErrInvalidQuality = errors.New("invalid quality rating")
	// ErrInvalidInput indicates invalid input for audit operations.
	ErrInvalidInput = errors.New("invalid audit input")
)
