// models/errors.go - Domain error taxonomy
package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for the event layer.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindRateLimit    ErrorKind = "rate_limit"
	KindInternal     ErrorKind = "internal"
)

// GameError is the error type returned by the room aggregate and the
// use-case layer. The dispatcher maps Kind to the wire-level error event.
type GameError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter int // seconds, rate-limit errors only
}

func (e *GameError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *GameError {
	return &GameError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorizedError(format string, args ...interface{}) *GameError {
	return &GameError{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func NewForbiddenError(format string, args ...interface{}) *GameError {
	return &GameError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *GameError {
	return &GameError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...interface{}) *GameError {
	return &GameError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewRateLimitError(retryAfter int) *GameError {
	return &GameError{
		Kind:       KindRateLimit,
		Message:    "Rate limit exceeded. Please slow down.",
		RetryAfter: retryAfter,
	}
}

// KindOf returns the ErrorKind of err, or KindInternal for non-domain errors.
func KindOf(err error) ErrorKind {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a GameError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
