package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures by how the watcher should react to them
type ErrorType string

const (
	// ErrorTypeAuth means the session is invalid or expired. Not recoverable
	// without new credentials; surfaced to the operator.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeNetwork covers transport failures. They fail only the current
	// tick; the next scheduled tick retries from committed state.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing covers malformed responses from the remote API.
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeState covers unreadable or corrupt durable state. Non-fatal,
	// triggers a fresh bootstrap.
	ErrorTypeState ErrorType = "state"
	// ErrorTypeConfig covers invalid configuration. Fatal at startup.
	ErrorTypeConfig ErrorType = "config"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a classified error with an optional HTTP status code
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a classified error
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// WithCode creates a classified error carrying an HTTP status code
func WithCode(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is classified as t
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// IsTickScoped reports whether an error type only fails the current tick.
// The fixed poll delay is the sole backoff; the next tick retries.
func IsTickScoped(t ErrorType) bool {
	switch t {
	case ErrorTypeNetwork, ErrorTypeParsing:
		return true
	default:
		return false
	}
}

// TypeFromStatusCode maps an HTTP status code to an error classification
func TypeFromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode >= 500:
		return ErrorTypeNetwork
	case statusCode >= 400:
		return ErrorTypeUnknown
	default:
		return ErrorTypeUnknown
	}
}
