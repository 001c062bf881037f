package service

import (
	"errors"
	"net/http"
)

// Kind classifies business-rule violations so the handler boundary can
// map them to HTTP statuses without string matching.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is a typed, caught-at-the-boundary failure carrying a
// user-facing message. Anything that is not an *Error is treated as
// unexpected and surfaced as a generic 500.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func Invalid(msg string) *Error      { return &Error{Kind: KindValidation, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }

// HTTPStatus resolves the response status and message for an error.
// The ok result reports whether the error was a typed business failure.
func HTTPStatus(err error) (status int, msg string, ok bool) {
	var se *Error
	if !errors.As(err, &se) {
		return http.StatusInternalServerError, "internal error", false
	}
	switch se.Kind {
	case KindValidation:
		return http.StatusBadRequest, se.Message, true
	case KindUnauthenticated:
		return http.StatusUnauthorized, se.Message, true
	case KindForbidden:
		return http.StatusForbidden, se.Message, true
	case KindNotFound:
		return http.StatusNotFound, se.Message, true
	case KindConflict:
		return http.StatusConflict, se.Message, true
	default:
		return http.StatusInternalServerError, "internal error", false
	}
}
