// Package errors provides structured error handling with HTTP status code
// mapping for the action replay service.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mfriesen/actionreplay/internal/domain"
)

// Kind categorizes an error for metrics and response formatting. The values
// are the taxonomy callers see on the wire.
type Kind string

const (
	// KindInvalidInput indicates missing or malformed request fields (HTTP 400)
	KindInvalidInput Kind = "invalid_input"
	// KindInvalidTarget indicates a target outside the allow-list (HTTP 400)
	KindInvalidTarget Kind = "invalid_target"
	// KindInvalidBulkSize indicates a bulk array outside 1..10 (HTTP 400)
	KindInvalidBulkSize Kind = "invalid_bulk_size"
	// KindNoSessions indicates the registry was empty at run time (HTTP 409)
	KindNoSessions Kind = "no_sessions_available"
	// KindSessionInvalid indicates an authentication probe failure (HTTP 502)
	KindSessionInvalid Kind = "session_invalid"
	// KindActionFailed indicates a non-authentication driver failure (HTTP 502)
	KindActionFailed Kind = "action_failed"
	// KindStoreUnavailable indicates a durable backend failure (HTTP 503)
	KindStoreUnavailable Kind = "store_unavailable"
	// KindNotFound indicates an unknown resource (HTTP 404)
	KindNotFound Kind = "not_found"
	// KindUnauthorized indicates a missing operator login (HTTP 401)
	KindUnauthorized Kind = "unauthorized"
	// KindInternal indicates a server-side error (HTTP 500)
	KindInternal Kind = "internal"
)

// Error is a structured error with kind, message and context.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindInvalidTarget, KindInvalidBulkSize:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindNoSessions:
		return http.StatusConflict
	case KindSessionInvalid, KindActionFailed:
		return http.StatusBadGateway
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Context: make(map[string]any)}
}

// InvalidInput creates a new invalid-input error (HTTP 400).
func InvalidInput(message string) *Error {
	return newError(KindInvalidInput, message)
}

// InvalidTarget creates a new target-allow-list error (HTTP 400).
func InvalidTarget(message string) *Error {
	return newError(KindInvalidTarget, message)
}

// NotFound creates a new not-found error (HTTP 404).
func NotFound(message string) *Error {
	return newError(KindNotFound, message)
}

// Unauthorized creates a new unauthorized error (HTTP 401).
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message)
}

// Internal creates a new internal error (HTTP 500).
func Internal(message string, cause error) *Error {
	e := newError(KindInternal, message)
	e.Cause = cause
	return e
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON structure sent to clients.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Kind    Kind           `json:"kind"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse converts an Error to an ErrorResponse for JSON serialization.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   e.Message,
		Kind:    e.Kind,
		Context: e.Context,
	}
}

// FromDomain converts any error into a structured Error, mapping the domain
// sentinels onto their kinds. Already-structured errors pass through.
func FromDomain(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	kind := KindInternal
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		kind = KindInvalidInput
	case errors.Is(err, domain.ErrInvalidTarget):
		kind = KindInvalidTarget
	case errors.Is(err, domain.ErrInvalidBulkSize):
		kind = KindInvalidBulkSize
	case errors.Is(err, domain.ErrNoSessionsAvailable):
		kind = KindNoSessions
	case errors.Is(err, domain.ErrSessionInvalid):
		kind = KindSessionInvalid
	case errors.Is(err, domain.ErrSessionNotFound):
		kind = KindNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		kind = KindStoreUnavailable
	}

	e := newError(kind, err.Error())
	if kind == KindInternal {
		e.Message = "internal server error"
		e.Cause = err
	}
	return e
}
