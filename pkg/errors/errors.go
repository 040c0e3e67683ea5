package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeBadRequest   ErrorType = "bad_request"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnavailable  ErrorType = "unavailable"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeProtocol     ErrorType = "protocol"
	ErrorTypeTransport    ErrorType = "transport"
	ErrorTypeBackpressure ErrorType = "backpressure"
	ErrorTypeClosed       ErrorType = "closed"
	ErrorTypeWriterClosed ErrorType = "writer_closed"
)

// Error represents a structured error with additional context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]any
}

// NewError creates a new structured error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithCause adds the underlying cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	e.Details[key] = value
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsType reports whether err (or any error it wraps) is an *Error of the
// given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal if err is not
// a structured *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// HTTPStatusCode returns the appropriate HTTP status code for the error type
func (e *Error) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeBadRequest, ErrorTypeProtocol:
		return 400
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeTimeout:
		return 408
	case ErrorTypeUnavailable, ErrorTypeBackpressure:
		return 503
	default:
		return 500
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
