package upload

import "errors"

// Sentinel errors for upload operations.
var (
	// ErrFileTooLarge is returned when an upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")

	// ErrEmptyFile is returned when an upload has no content.
	ErrEmptyFile = errors.New("file is empty")

	// ErrFileNotFound is returned when the requested file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidName is returned when a storage name contains path components.
	ErrInvalidName = errors.New("invalid storage name")

	// ErrNotStarted is returned when the module is used before Start.
	ErrNotStarted = errors.New("upload module not started")
)
