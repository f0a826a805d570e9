// Package apperrors defines the closed error taxonomy shared by the store,
// services and handlers. Every failure in this service is per-request;
// handlers map these types to HTTP statuses and nothing here is fatal.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a row does not exist or the caller's
// visibility scope excludes it. Scoped lookups deliberately return the
// same error in both cases so existence is never leaked.
var ErrNotFound = errors.New("not found")

// FieldError is one field-level validation failure
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is malformed input: out-of-range coordinate, missing
// required field, stale or future timestamp. Never retried.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation failed on %d fields", len(e.Fields))
}

// NewValidationError builds a single-field validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field failure and returns the error for chaining
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// BatchItemError reports validation failures for one item of a batch by index
type BatchItemError struct {
	Index  int          `json:"index"`
	Fields []FieldError `json:"fields"`
}

// BatchValidationError rejects a whole batch: either every item validates
// or none is persisted.
type BatchValidationError struct {
	Items []BatchItemError
}

func (e *BatchValidationError) Error() string {
	return fmt.Sprintf("batch validation failed for %d item(s)", len(e.Items))
}

// NoActiveSessionError is a GPS sample submitted with no open session.
// Distinct so the client can prompt the agent to start their session.
type NoActiveSessionError struct {
	AgentID string
}

func (e *NoActiveSessionError) Error() string {
	return fmt.Sprintf("agent %s has no open working session", e.AgentID)
}

// ConflictError is an attempt to start a session while one is already open
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// InvalidStateError is pause/resume/end called from a state that
// disallows the transition.
type InvalidStateError struct {
	Current   string
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a session in state %q", e.Attempted, e.Current)
}

// AuthorizationError is an actor whose scope excludes the requested
// resource. Handlers resolve it to 404 for entity lookups and 403 for
// role-gated surfaces.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }
