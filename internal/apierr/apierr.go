// Package apierr defines the error taxonomy returned by every request handler.
//
// Only the Message of an *Error ever reaches a client. The wrapped cause is
// for server-side logs.
package apierr

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a handler failure.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingTenant
	KindInvalidInput
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindUpstream
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindMissingTenant:
		return "MissingTenant"
	case KindInvalidInput:
		return "InvalidInput"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindUpstream:
		return "UpstreamFailure"
	case KindRateLimited:
		return "RateLimited"
	default:
		return "InternalError"
	}
}

// Status maps a kind to the HTTP status code of the response.
func Status(k Kind) int {
	switch k {
	case KindMissingTenant, KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string // offending fields for KindInvalidInput
	Err     error    // cause, never sent to clients
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Message
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Details returns the optional human-readable detail line for the envelope.
func (e *Error) Details() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// MissingTenant reports that a tenant-scoped operation had no tenant.
func MissingTenant() error {
	return &Error{Kind: KindMissingTenant, Message: "tenant is required"}
}

// InvalidInput names every offending field.
func InvalidInput(msg string, fields ...string) error {
	if msg == "" {
		msg = "invalid input"
	}
	return &Error{Kind: KindInvalidInput, Message: msg, Fields: fields}
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(msg string) error {
	if msg == "" {
		msg = "unauthorized"
	}
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Forbidden reports an authenticated caller that is not entitled.
// The same message is used whether or not the resource exists.
func Forbidden() error {
	return &Error{Kind: KindForbidden, Message: "resource not accessible"}
}

// NotFound reports a missing resource.
func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Upstream wraps a third-party gateway failure behind a generic message.
func Upstream(service string, cause error) error {
	return &Error{Kind: KindUpstream, Message: service + " is unavailable, please retry", Err: cause}
}

// RateLimited reports an exhausted request budget.
func RateLimited() error {
	return &Error{Kind: KindRateLimited, Message: "rate limit exceeded"}
}

// Internal wraps an unexpected failure behind a generic message.
func Internal(cause error) error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: cause}
}

// As extracts an *Error from err. Unclassified errors become internal errors.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	return As(err).Kind
}

// Is reports whether err is classified as kind k.
func Is(err error, k Kind) bool {
	if err == nil {
		return false
	}
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
