// Package apierr defines the error taxonomy shared by the metering client.
package apierr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a client error.
type Kind string

const (
	// KindValidation marks bad caller input or configuration. Never retried.
	KindValidation Kind = "VALIDATION_ERROR"

	// KindAuth marks a credential exchange that exhausted its attempts.
	KindAuth Kind = "AUTH_ERROR"

	// KindRequest marks an authenticated call that exhausted its attempts.
	KindRequest Kind = "REQUEST_ERROR"
)

// Sentinels usable with errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrRequest    = &Error{Kind: KindRequest}
)

// Error is a client error with the context needed to diagnose it.
type Error struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Method   string `json:"method,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Cause    error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Endpoint != "" {
		msg += fmt.Sprintf(" (%s %s)", e.Method, e.Endpoint)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Validationf creates a formatted validation error.
func Validationf(format string, args ...interface{}) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Auth creates an authentication error after the given number of attempts.
func Auth(attempts int, cause error) *Error {
	return &Error{
		Kind:     KindAuth,
		Message:  "failed to obtain bearer token",
		Attempts: attempts,
		Cause:    cause,
	}
}

// Request creates a request error for an exhausted endpoint call.
func Request(method, endpoint string, attempts int, cause error) *Error {
	return &Error{
		Kind:     KindRequest,
		Message:  "request failed",
		Method:   method,
		Endpoint: endpoint,
		Attempts: attempts,
		Cause:    cause,
	}
}

// IsKind reports whether err, or any error it wraps, is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// StatusError describes a non-2xx response from the upstream API.
type StatusError struct {
	StatusCode int
	Body       string
}

const maxStatusBody = 256

// NewStatusError keeps at most the first 256 bytes of body.
func NewStatusError(code int, body []byte) *StatusError {
	if len(body) > maxStatusBody {
		body = body[:maxStatusBody]
	}
	return &StatusError{StatusCode: code, Body: string(body)}
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
