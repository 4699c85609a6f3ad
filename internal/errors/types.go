// Package errors defines the typed error taxonomy of the server. Every
// per-request failure is a *ServeError whose code decides the HTTP status
// and fixed body sent back to the client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeProtocol ErrorType = "protocol"
	ErrorTypePath     ErrorType = "path"
	ErrorTypeSecurity ErrorType = "security"
	ErrorTypeResource ErrorType = "resource"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeStartup  ErrorType = "startup"
	ErrorTypeConfig   ErrorType = "config"
)

// Common error codes.
const (
	ErrCodeMethodNotAllowed = "ERR_METHOD_NOT_ALLOWED"
	ErrCodeMalformedRequest = "ERR_MALFORMED_REQUEST"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodePathEscape       = "ERR_PATH_ESCAPE"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeReadFailed       = "ERR_READ_FAILED"
	ErrCodeListenFailed     = "ERR_LISTEN_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
)

// ServeError is a structured error type with context.
type ServeError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ServeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ServeError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ServeError) Is(target error) bool {
	var t *ServeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ServeError) WithContext(key string, value interface{}) *ServeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// Fields flattens the error into logger key/value pairs.
func (e *ServeError) Fields() []interface{} {
	fields := []interface{}{"type", string(e.Type), "code", e.Code}
	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

// Error creation functions

// NewProtocolError creates a client protocol error.
func NewProtocolError(code, message string) *ServeError {
	return &ServeError{Type: ErrorTypeProtocol, Code: code, Message: message}
}

// NewPathError creates a path canonicalization error.
func NewPathError(code, message string, cause error) *ServeError {
	return &ServeError{Type: ErrorTypePath, Code: code, Message: message, Cause: cause}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *ServeError {
	return &ServeError{Type: ErrorTypeSecurity, Code: code, Message: message}
}

// NewResourceError creates a missing-resource error.
func NewResourceError(code, message string, cause error) *ServeError {
	return &ServeError{Type: ErrorTypeResource, Code: code, Message: message, Cause: cause}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *ServeError {
	return &ServeError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewStartupError creates a fatal startup error.
func NewStartupError(code, message string, cause error) *ServeError {
	return &ServeError{Type: ErrorTypeStartup, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ServeError {
	return &ServeError{Type: ErrorTypeConfig, Code: code, Message: message}
}

// Helper functions for common errors

// ErrMethodNotAllowed reports a request line that is not a GET.
func ErrMethodNotAllowed(line string) *ServeError {
	return NewProtocolError(ErrCodeMethodNotAllowed, "method not allowed").
		WithContext("request_line", line)
}

// ErrMalformedRequest reports a request line without a target.
func ErrMalformedRequest(line string) *ServeError {
	return NewProtocolError(ErrCodeMalformedRequest, "malformed request line").
		WithContext("request_line", line)
}

// ErrInvalidPath reports a target that could not be canonicalized.
func ErrInvalidPath(path string, cause error) *ServeError {
	return NewPathError(ErrCodeInvalidPath, "invalid path: "+path, cause)
}

// ErrPathEscape reports a target that resolves outside the root.
func ErrPathEscape(path string) *ServeError {
	return NewSecurityError(ErrCodePathEscape, "path escapes root: "+path)
}

// ErrNotFound reports a missing or non-regular target.
func ErrNotFound(path string) *ServeError {
	return NewResourceError(ErrCodeNotFound, "resource not found: "+path, nil)
}

// ErrReadFailed reports a target that exists but could not be read.
func ErrReadFailed(path string, cause error) *ServeError {
	return NewIOError(ErrCodeReadFailed, "failed to read: "+path, cause)
}

// Status pairs an HTTP status code with the fixed plain-text body sent for it.
type Status struct {
	Code int
	Body string
}

var statuses = map[string]Status{
	ErrCodeMethodNotAllowed: {http.StatusMethodNotAllowed, "Only GET is supported.\n"},
	ErrCodeMalformedRequest: {http.StatusBadRequest, "Malformed request.\n"},
	ErrCodeInvalidPath:      {http.StatusBadRequest, "Invalid path.\n"},
	ErrCodePathEscape:       {http.StatusForbidden, "Invalid path.\n"},
	ErrCodeNotFound:         {http.StatusNotFound, "Resource not found.\n"},
	ErrCodeReadFailed:       {http.StatusInternalServerError, "Failed to read file.\n"},
}

// StatusOf maps err to the response the client receives. Errors outside
// the request taxonomy become a 500.
func StatusOf(err error) Status {
	var se *ServeError
	if errors.As(err, &se) {
		if status, ok := statuses[se.Code]; ok {
			return status
		}
	}

	return Status{Code: http.StatusInternalServerError, Body: "Internal server error.\n"}
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var se *ServeError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeSecurity
	}

	return false
}

// IsStartupError checks if an error happened while the server was starting.
func IsStartupError(err error) bool {
	var se *ServeError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeStartup
	}

	return false
}
