package engine

import (
	"errors"
	"fmt"
)

// Error represents a failure detected during rule evaluation or effect
// application. It carries structured fields for diagnostics; the audit
// trail stores its rendered form so callers can inspect partial success
// without reading logs.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// RuleID identifies the rule being processed.
	RuleID string

	// Path identifies the state path involved.
	Path string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodePathNotFound indicates a condition path that resolves to
	// neither namespace.
	ErrCodePathNotFound ErrorCode = "PATH_NOT_FOUND"

	// ErrCodeTargetMissing indicates an adjust_variable effect whose
	// target does not exist.
	ErrCodeTargetMissing ErrorCode = "TARGET_MISSING"

	// ErrCodeTypeMismatch indicates a comparison that is undefined for
	// the declared value type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.RuleID != "" && e.Path != "" {
		return fmt.Sprintf("%s: %s (rule=%s, path=%s)", e.Code, e.Message, e.RuleID, e.Path)
	}
	if e.RuleID != "" {
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.RuleID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPathNotFound reports whether err is a path resolution failure.
// Uses errors.As to handle wrapped errors.
func IsPathNotFound(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodePathNotFound
}

// IsTargetMissing reports whether err is a missing adjust target.
// Uses errors.As to handle wrapped errors.
func IsTargetMissing(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeTargetMissing
}

// NewTargetMissingError creates an Error for a missing adjust target.
func NewTargetMissingError(ruleID, path string) *Error {
	return &Error{
		Code:    ErrCodeTargetMissing,
		RuleID:  ruleID,
		Path:    path,
		Message: "adjust_variable target does not exist",
	}
}

// NewPathNotFoundError creates an Error for an unresolved condition path.
func NewPathNotFoundError(ruleID, path string) *Error {
	return &Error{
		Code:    ErrCodePathNotFound,
		RuleID:  ruleID,
		Path:    path,
		Message: "condition path resolves to neither overlays nor variables",
	}
}
