package device

import "errors"

var (
	// ErrDeviceNotFound indicates the device doesn't exist.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDuplicateCode indicates another device already uses the code.
	ErrDuplicateCode = errors.New("device code already in use")
	// ErrInvalidInput indicates invalid device input.
	ErrInvalidInput = errors.New("invalid device input")
)
