package core

import (
	"errors"
	"net/http"
)

// HTTPError carries the status code and client-facing message for a domain
// error. Modules wrap their sentinel errors so handlers can map them without
// per-route switch statements.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError wraps err with an HTTP status and client-facing message.
func NewHTTPError(status int, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Message: message, Err: err}
}

// AsHTTPError extracts an HTTPError from an error chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// Common request-level failures.
func BadRequest(message string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: message}
}

func NotFound(message string) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Message: message}
}

func Unauthorized(message string) *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Message: message}
}

func Conflict(message string) *HTTPError {
	return &HTTPError{Status: http.StatusConflict, Message: message}
}

func UnprocessableEntity(message string) *HTTPError {
	return &HTTPError{Status: http.StatusUnprocessableEntity, Message: message}
}
