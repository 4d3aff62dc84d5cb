// Package errutil defines the error kinds surfaced by the workflow engine and
// the HTTP layer.
package errutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for HTTP status mapping
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidState       Kind = "INVALID_STATE"
	KindAlreadyProcessed   Kind = "ALREADY_PROCESSED"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindInsufficientPoints Kind = "INSUFFICIENT_POINTS"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindInternal           Kind = "INTERNAL"
)

// Error carries a kind, a caller-safe message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, ErrNotFound) works
// against any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrAlreadyProcessed   = &Error{Kind: KindAlreadyProcessed}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrInsufficientPoints = &Error{Kind: KindInsufficientPoints}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrForbidden          = &Error{Kind: KindForbidden}
)

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(format string, args ...interface{}) error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...interface{}) error {
	return New(KindInvalidState, fmt.Sprintf(format, args...))
}

func AlreadyProcessed(format string, args ...interface{}) error {
	return New(KindAlreadyProcessed, fmt.Sprintf(format, args...))
}

func InvalidArgument(format string, args ...interface{}) error {
	return New(KindInvalidArgument, fmt.Sprintf(format, args...))
}

func InsufficientPoints(format string, args ...interface{}) error {
	return New(KindInsufficientPoints, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...interface{}) error {
	return New(KindUnauthorized, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...interface{}) error {
	return New(KindForbidden, fmt.Sprintf(format, args...))
}

func Internal(message string, err error) error {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the kind of err, or KindInternal for untyped errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the response status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindAlreadyProcessed:
		return http.StatusConflict
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindInsufficientPoints:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to API clients. Internal
// errors never leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

// ErrorBody is the JSON shape of every API error response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

// Response returns the status code and body for err
func Response(err error) (int, ErrorBody) {
	return HTTPStatus(err), ErrorBody{Error: ErrorDetail{Code: KindOf(err), Message: PublicMessage(err)}}
}
