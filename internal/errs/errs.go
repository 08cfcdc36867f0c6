// Package errs defines the error kinds shared by the scheduling core and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every *Error unwraps to exactly one of these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("availability conflict")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrLocked            = errors.New("resource locked")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Error carries a kind plus the detail a caller needs to act on it.
type Error struct {
	Kind    error          `json:"-"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Validation reports a malformed input field.
func Validation(field, message string) *Error {
	return &Error{Kind: ErrValidation, Field: field, Message: message}
}

// Conflict reports a clash between availability rules.
func Conflict(message string, meta map[string]any) *Error {
	return &Error{Kind: ErrConflict, Message: message, Meta: meta}
}

// SlotUnavailable reports that a booking lost its slot.
func SlotUnavailable(message string, err error) *Error {
	return &Error{Kind: ErrSlotUnavailable, Message: message, Err: err}
}

// Locked reports a structural change blocked by live appointments.
func Locked(message string, meta map[string]any) *Error {
	return &Error{Kind: ErrLocked, Message: message, Meta: meta}
}

// NotFound reports a missing entity.
func NotFound(resource string, err error) *Error {
	return &Error{Kind: ErrNotFound, Message: resource + " not found", Err: err}
}

// InvalidTransition reports a status change the state machine forbids.
func InvalidTransition(from, to string) *Error {
	return &Error{
		Kind:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot move appointment from %s to %s", from, to),
		Meta:    map[string]any{"from": from, "to": to},
	}
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
