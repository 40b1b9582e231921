package tree

import (
	"errors"
	"fmt"
)

// ErrInvalidSpec is matched by every structural error returned by this package.
var ErrInvalidSpec = errors.New("invalid tree spec")

// StructuralError reports a malformed tree specification.
type StructuralError struct {
	// Path is the slash-joined location of the offending node.
	// Empty for the document root.
	Path string

	// Reason describes what is wrong with the node.
	Reason string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("tree spec: %s", e.Reason)
	}
	return fmt.Sprintf("tree spec: %s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvalidSpec so callers can use errors.Is.
func (e *StructuralError) Unwrap() error {
	return ErrInvalidSpec
}

// IsStructural returns true if err is a structural spec error.
func IsStructural(err error) bool {
	return errors.Is(err, ErrInvalidSpec)
}

func structuralf(path, format string, args ...any) error {
	return &StructuralError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
