// Package apperr defines the error kinds shared by stores, services and
// handlers. Every error that reaches a client carries a stable kind tag and a
// human readable message; wrapped driver errors are never exposed.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the stable tag reported to clients.
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindAlreadySettled      Kind = "already_settled"
	KindSeatsExhausted      Kind = "seats_exhausted"
	KindInvalidInput        Kind = "invalid_input"
	KindPartialSettlement   Kind = "partial_settlement"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

// Error is a classified error. Err holds the underlying cause, if any, and is
// only used for logging and errors.Is/As chains.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so the sentinels
// below match any error of their kind regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "unauthorized access"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden access"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "conflict"}
	ErrAlreadySettled      = &Error{Kind: KindAlreadySettled, Message: "charge already settled"}
	ErrSeatsExhausted      = &Error{Kind: KindSeatsExhausted, Message: "no seats available"}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrPartialSettlement   = &Error{Kind: KindPartialSettlement, Message: "partial settlement"}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable, Message: "upstream unavailable"}
)

// New returns a classified error with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies err under kind. The message is what the client sees.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Unavailable wraps a persistence or broker failure.
func Unavailable(msg string, err error) *Error {
	return Wrap(KindUpstreamUnavailable, msg, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindAlreadySettled, KindSeatsExhausted:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindPartialSettlement:
		return http.StatusAccepted
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope written by handlers and middleware.
func Body(err error) map[string]any {
	return map[string]any{
		"error": map[string]string{
			"kind":    string(KindOf(err)),
			"message": Message(err),
		},
	}
}
