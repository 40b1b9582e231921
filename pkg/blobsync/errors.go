package blobsync

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("invalid client configuration")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid argument")

	// ErrLocalRootNotDir is returned by UploadTree when the local root is
	// missing or is not a directory. It matches fs.ErrNotExist.
	ErrLocalRootNotDir = fmt.Errorf("local root is not a directory: %w", fs.ErrNotExist)
)

// ConfigError reports a missing or invalid Config field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "blobsync config: " + e.Field + ": " + e.Message
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// ValidationError reports an invalid operation argument.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "blobsync: " + e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
