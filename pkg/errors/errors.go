package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType categorises failures so callers can branch without string matching.
type ErrorType string

const (
	// Input and domain errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeParse      ErrorType = "PARSE"

	// Remote workflow errors
	ErrorTypeTransport   ErrorType = "TRANSPORT"
	ErrorTypeRemote      ErrorType = "REMOTE"
	ErrorTypeEmptyResult ErrorType = "EMPTY_RESULT"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeCanceled    ErrorType = "CANCELED"

	ErrorTypeInternal ErrorType = "INTERNAL"
)

// StatusClientClosedRequest is the non-standard status used when the caller gave up.
const StatusClientClosedRequest = 499

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
	Retryable  bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithDetail sets a single detail entry.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(t ErrorType, message string, status int, retryable bool) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		Retryable:  retryable,
		StackTrace: captureStackTrace(),
	}
}

// Constructor functions for common error types

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, message, http.StatusBadRequest, false)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, false)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, message, http.StatusConflict, false)
}

// NewParseError reports input that produced nothing usable.
func NewParseError(message string) *AppError {
	return newError(ErrorTypeParse, message, http.StatusUnprocessableEntity, false)
}

// NewTransportError reports a network failure or a non-success HTTP status.
func NewTransportError(message string, err error) *AppError {
	return newError(ErrorTypeTransport, message, http.StatusBadGateway, true).WithCause(err)
}

// NewRemoteError reports a failure described by the remote service itself.
func NewRemoteError(message string) *AppError {
	return newError(ErrorTypeRemote, message, http.StatusBadGateway, true)
}

// NewEmptyResultError reports a successful search that matched nothing.
func NewEmptyResultError(message string) *AppError {
	return newError(ErrorTypeEmptyResult, message, http.StatusNotFound, true)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *AppError {
	return newError(ErrorTypeTimeout, fmt.Sprintf("operation '%s' timed out", operation), http.StatusGatewayTimeout, true)
}

// NewCanceledError reports that the caller abandoned the operation.
func NewCanceledError(operation string) *AppError {
	return newError(ErrorTypeCanceled, fmt.Sprintf("operation '%s' was cancelled", operation), StatusClientClosedRequest, true)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, message, http.StatusInternalServerError, false)
}

// FromContext maps a finished context to a cancellation or timeout error.
// It returns nil while the context is still live.
func FromContext(ctx context.Context, operation string) *AppError {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(operation).WithCause(err)
	default:
		return NewCanceledError(operation).WithCause(err)
	}
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsRetryable reports whether re-invoking the operation may succeed.
func IsRetryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}

// HTTPStatus returns the status code carried by err, defaulting to 500.
func HTTPStatus(err error) int {
	if appErr := GetAppError(err); appErr != nil && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
