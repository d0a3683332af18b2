package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind tags every failure of the client layer with its origin.
type ErrorKind string

const (
	// KindValidation marks input rejected before any network call.
	KindValidation ErrorKind = "validation"
	// KindTransport marks failures where no HTTP response was received.
	KindTransport ErrorKind = "transport"
	// KindAPI marks non-2xx responses other than 401.
	KindAPI ErrorKind = "api"
	// KindAuth marks 401 responses.
	KindAuth ErrorKind = "auth"
)

// Error is the single error shape surfaced by the client layer.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status, zero for validation/transport errors
	Message string // server-provided message or a localized fallback
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError wraps a domain validation failure.
func NewValidationError(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}

func kindOf(err error) (ErrorKind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return "", false
}

// IsAuth reports whether err is an authentication (401) failure.
func IsAuth(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindAuth
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindValidation
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindTransport
}

// IsConflict reports whether err is an HTTP 409 API failure.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindAPI && apiErr.Status == http.StatusConflict
}

// withFallback fills in a localized fallback message when the server did not
// provide one, and normalizes non-client errors into transport errors.
func withFallback(err error, message string) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message == "" {
			apiErr.Message = message
		}
		return apiErr
	}
	return &Error{Kind: KindTransport, Message: message, Err: err}
}
