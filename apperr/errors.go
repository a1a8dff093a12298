// Package apperr defines the error kinds surfaced by scheduling operations.
//
// Callers branch with errors.As on the typed kinds (ValidationError,
// ConflictError, NotFoundError, PersistenceError) and with errors.Is on the
// sentinels for the specific conflict reason.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrOverlap rejects an overtime interval that intersects an approved filing.
	ErrOverlap = errors.New("overlaps with existing approved overtime")

	// ErrDuplicateOneOff rejects a second one-off WFH day for the same user and date.
	ErrDuplicateOneOff = errors.New("one-off WFH day already filed for this date")

	// ErrOneOffOnOvertime rejects a one-off WFH day on a date with approved overtime.
	ErrOneOffOnOvertime = errors.New("date already has approved overtime")

	// ErrDuplicateUsername rejects a second account with the same username.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrAlreadyReviewed is returned when reviewing a filing that is no longer pending.
	ErrAlreadyReviewed = errors.New("filing already reviewed")

	// ErrNotEditable is returned when editing a declined filing.
	ErrNotEditable = errors.New("filing can no longer be edited")

	// ErrConcurrentUpdate is returned when a row changed between read and write.
	ErrConcurrentUpdate = errors.New("record was modified concurrently")

	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed input. Fields maps input names to messages.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	if e.Message == "" {
		return strings.Join(parts, "; ")
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func Validation(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func FieldError(field, message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]string{field: message}}
}

// ConflictError carries one of the conflict sentinels as Reason.
type ConflictError struct {
	Reason error
	Cause  error
}

func (e *ConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conflict: %v: %v", e.Reason, e.Cause)
	}
	return "conflict: " + e.Reason.Error()
}

func (e *ConflictError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Cause}
}

func Conflict(reason error) *ConflictError {
	return &ConflictError{Reason: reason}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// PersistenceError wraps a store failure that is not a declared constraint.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

func Persistence(op string, cause error) *PersistenceError {
	return &PersistenceError{Op: op, Cause: cause}
}

// Kind names the error category for transport layers.
func Kind(err error) string {
	var (
		ve *ValidationError
		ce *ConflictError
		ne *NotFoundError
		pe *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ce):
		return "conflict"
	case errors.As(err, &ne), errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.As(err, &pe):
		return "persistence"
	default:
		return "internal"
	}
}
