// Package apperrors defines the error kinds surfaced to API callers.
package apperrors

import "errors"

// Error kinds. Match with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// Error carries a kind plus a caller-facing message.
type Error struct {
	Kind    error
	Message string
	Err     error // underlying cause, not shown to callers
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind that keeps cause for logging.
func Wrap(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// NotFound is shorthand for New(ErrNotFound, message).
func NotFound(message string) error { return New(ErrNotFound, message) }

// Forbidden is shorthand for New(ErrForbidden, message).
func Forbidden(message string) error { return New(ErrForbidden, message) }

// Validation is shorthand for New(ErrValidation, message).
func Validation(message string) error { return New(ErrValidation, message) }

// Conflict is shorthand for New(ErrConflict, message).
func Conflict(message string) error { return New(ErrConflict, message) }

// Message returns the caller-facing message of err, or fallback when err has none.
func Message(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}
