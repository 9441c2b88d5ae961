package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/meeting-checkin/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidTransition is wrapped by GuardError when the meeting status does not allow the operation.
	ErrInvalidTransition = errors.New("application: transition not allowed from current status")
	// ErrStartTooEarly is wrapped by GuardError when a meeting is started before its start window opens.
	ErrStartTooEarly = errors.New("application: meeting cannot be started yet")
	// ErrTokenInvalid is returned for unknown, expired or invalidated check-in tokens.
	// It matches ErrNotFound so callers cannot tell the cases apart.
	ErrTokenInvalid = fmt.Errorf("application: check-in token invalid: %w", ErrNotFound)
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

func newValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// ConflictError reports the blocking meeting that holds an overlapping room window.
type ConflictError struct {
	Conflict scheduler.Conflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	c := e.Conflict
	return fmt.Sprintf("room %s is held by meeting %s on %s from %s to %s",
		c.RoomID, c.WithMeetingID, c.Date, c.Start, c.End)
}

// GuardError is a rejected lifecycle operation. Err is ErrUnauthorized,
// ErrInvalidTransition or ErrStartTooEarly.
type GuardError struct {
	Operation string
	Status    scheduler.Status
	Reason    string
	Err       error
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s rejected while %s: %s", e.Operation, e.Status, e.Reason)
}

// Unwrap exposes the guard category for errors.Is.
func (e *GuardError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func roleGuard(op string, status scheduler.Status, reason string) *GuardError {
	return &GuardError{Operation: op, Status: status, Reason: reason, Err: ErrUnauthorized}
}

func statusGuard(op scheduler.Transition, status scheduler.Status) *GuardError {
	allowed := scheduler.AllowedFrom(op)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	reason := fmt.Sprintf("%s requires status %s", op, strings.Join(names, " or "))
	if len(allowed) == 0 {
		reason = fmt.Sprintf("%s is not allowed", op)
	}
	return &GuardError{Operation: string(op), Status: status, Reason: reason, Err: ErrInvalidTransition}
}

func stateGuard(op string, status scheduler.Status, reason string) *GuardError {
	return &GuardError{Operation: op, Status: status, Reason: reason, Err: ErrInvalidTransition}
}
