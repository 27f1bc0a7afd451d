// Package apperr defines the error taxonomy shared by the CLI and MCP layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrMalformed   = errors.New("malformed frontmatter")
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("record already exists")
	ErrConsistency = errors.New("index and markdown diverged")
	ErrIO          = errors.New("io failure")
)

// Kind labels carried in structured tool errors and mapped to exit codes.
const (
	KindValidation  = "validation"
	KindMalformed   = "malformed_frontmatter"
	KindNotFound    = "not_found"
	KindConflict    = "conflict"
	KindConsistency = "consistency"
	KindIO          = "io"
	KindInternal    = "internal"
)

// Kind returns the taxonomy label for err.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrConsistency):
		return KindConsistency
	case errors.Is(err, ErrIO):
		return KindIO
	default:
		return KindInternal
	}
}

// Validationf wraps ErrValidation with a formatted message naming the
// offending field or value.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound reports an unknown record id within a type collection.
func NotFound(recordType, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, recordType, id)
}

// Conflict reports a duplicate record id or file path within a type collection.
func Conflict(recordType, id string) error {
	return fmt.Errorf("%w: %s %q", ErrConflict, recordType, id)
}

// Malformed reports an unparsable frontmatter block in the file at path.
func Malformed(path string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrMalformed, path)
	}
	return fmt.Errorf("%w: %s: %v", ErrMalformed, path, cause)
}

// Consistency reports a mutation that had to be rolled back. The path names
// the markdown file whose write failed.
func Consistency(path string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrConsistency, path, cause)
}
