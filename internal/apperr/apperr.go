// Package apperr defines the error kinds surfaced to API clients and their
// HTTP status codes.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthRequired      Kind = "authentication_required"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindProductNotFound   Kind = "product_not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindConflict          Kind = "conflict"
	KindRateLimited       Kind = "rate_limited"
	KindInternal          Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:        http.StatusBadRequest,
	KindAuthRequired:      http.StatusUnauthorized,
	KindForbidden:         http.StatusForbidden,
	KindNotFound:          http.StatusNotFound,
	KindProductNotFound:   http.StatusBadRequest,
	KindInsufficientStock: http.StatusConflict,
	KindConflict:          http.StatusConflict,
	KindRateLimited:       http.StatusTooManyRequests,
	KindInternal:          http.StatusInternalServerError,
}

// Error is an application error with a stable kind and a message that is
// safe to show to clients. Err holds the cause and is never rendered.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches machine-readable details, such as offending ids.
func (e *Error) WithDetails(d any) *Error {
	e.Details = d
	return e
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(what string) *Error {
	return New(KindNotFound, "%s not found", what)
}

func Forbidden() *Error {
	return New(KindForbidden, "you are not allowed to perform this action")
}

func AuthRequired() *Error {
	return New(KindAuthRequired, "authentication required")
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func RateLimited() *Error {
	return New(KindRateLimited, "too many requests, try again later")
}

// Internal wraps an unexpected failure; the cause is kept for logging only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// From returns err as an *Error, treating anything unknown as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// KindOf returns the kind of err, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// Body is the JSON error envelope.
// swagger:model
type Body struct {
	Error BodyError `json:"error"`
}

type BodyError struct {
	// example: not_found
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Body() Body {
	return Body{Error: BodyError{Kind: e.Kind, Message: e.Message, Details: e.Details}}
}
