package incident

import "errors"

var (
	// ErrIncidentNotFound indicates the incident doesn't exist.
	ErrIncidentNotFound = errors.New("incident not found")
	// ErrDeviceNotFound indicates the reported device doesn't exist.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidInput indicates invalid incident input.
	ErrInvalidInput = errors.New("invalid incident input")
)
