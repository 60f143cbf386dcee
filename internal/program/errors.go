package program

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: program may be corrupted")
	ErrOffsetOverlap      = errors.New("constant offsets overlap")
	ErrOutOfBounds        = errors.New("constant extends beyond data segment")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrDataTooLarge       = errors.New("data segment exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrTruncated          = errors.New("program is truncated")
	ErrMethodNotFound     = errors.New("method not found")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type     string // Type of error (e.g., "offset_overlap", "bad_value_index")
	Subject  string // Primary constant, method or value involved
	Subject2 string // Secondary subject (for overlap errors)
	Details  string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Subject2 != "" {
		return fmt.Sprintf("%s: %q and %q: %s", e.Type, e.Subject, e.Subject2, e.Details)
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s: %q: %s", e.Type, e.Subject, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}
