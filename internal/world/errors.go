package world

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input detected before any mutation.
// Validation errors are fatal to the enclosing public operation and are
// surfaced to the caller with the operation name and offending field.
type ValidationError struct {
	// Op names the public operation that rejected the input.
	Op string

	// Field names the offending field or path.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid %s: %s", e.Op, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
