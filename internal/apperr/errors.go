// Package apperr holds the error values shared across layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid input")
)

// Image processing failures. Surfaced to the user with an actionable message.
var (
	ErrDecode                = errors.New("image could not be decoded")
	ErrUnsupportedDimensions = errors.New("image dimensions are not supported")
	ErrTimeout               = errors.New("image processing timed out")
)

// Storage and inline fallback failures.
var (
	ErrUploadFailed           = errors.New("upload to object storage failed")
	ErrNotConfigured          = errors.New("object storage is not configured")
	ErrImageTooLargeForInline = errors.New("image too large for inline storage")
	// ErrInlineBudgetExceeded wraps ErrImageTooLargeForInline so callers can
	// match either.
	ErrInlineBudgetExceeded = fmt.Errorf("%w: inline budget for record exceeded", ErrImageTooLargeForInline)
)

// DocumentTooLargeError reports a record that would exceed the per-document
// size ceiling once serialized.
type DocumentTooLargeError struct {
	Size       int
	PhotoBytes int
	Limit      int
}

func (e *DocumentTooLargeError) Error() string {
	return fmt.Sprintf("document too large: %d bytes (limit %d, %d bytes from photos)", e.Size, e.Limit, e.PhotoBytes)
}
