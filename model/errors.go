package model

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable marks failures of a required call to the
// graph store or registry. Callers match it with errors.Is.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrNotFound marks a package or project that could not be resolved.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Upstream wraps err as an ErrUpstreamUnavailable with context about
// which upstream call failed.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUpstreamUnavailable, err)
}

// NotFound wraps ErrNotFound with the identifier that failed to resolve.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
