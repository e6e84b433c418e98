// Package errors defines structured error types for the developer-portal
// backend. Every error carries a machine-readable code, an HTTP status, and
// optional metadata so transport layers can render consistent responses
// without inspecting error strings.
package errors

import (
	"fmt"
	"net/http"

	"github.com/turtacn/devportal/pkg/constants"
)

// ================================================================================
// Error Interface
// ================================================================================

// AppError is a structured error with code, HTTP status, and metadata.
type AppError interface {
	error

	// Code returns the machine-readable error code.
	Code() constants.ErrorCode

	// HTTPStatus returns the HTTP status code to render.
	HTTPStatus() int

	// Unwrap returns the underlying cause for errors.Is/As support.
	Unwrap() error

	// WithCause attaches an underlying cause.
	WithCause(cause error) AppError

	// WithMetadata attaches a context key/value pair.
	WithMetadata(key string, value interface{}) AppError

	// Metadata returns all attached metadata.
	Metadata() map[string]interface{}
}

// ================================================================================
// Implementation
// ================================================================================

type baseError struct {
	code       constants.ErrorCode
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Code() constants.ErrorCode { return e.code }

func (e *baseError) HTTPStatus() int { return e.httpStatus }

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) WithCause(cause error) AppError {
	e.cause = cause
	return e
}

func (e *baseError) WithMetadata(key string, value interface{}) AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

func (e *baseError) Metadata() map[string]interface{} { return e.metadata }

// New creates an AppError with an explicit code and HTTP status.
func New(code constants.ErrorCode, httpStatus int, message string) AppError {
	return &baseError{
		code:       code,
		httpStatus: httpStatus,
		message:    message,
	}
}

// ================================================================================
// Predefined Constructors
// ================================================================================

// ErrInvalidRequest creates an invalid_request error.
func ErrInvalidRequest(message string) AppError {
	return New(constants.ErrCodeInvalidRequest, http.StatusBadRequest, message)
}

// ErrUnauthorized creates an unauthorized error. Validation failures collapse
// to this error without distinguishing which check failed.
func ErrUnauthorized(message string) AppError {
	return New(constants.ErrCodeUnauthorized, http.StatusUnauthorized, message)
}

// ErrForbidden creates a forbidden error naming the missing permission.
// The permission string is operator-facing, never a secret.
func ErrForbidden(permission string) AppError {
	return New(constants.ErrCodeForbidden, http.StatusForbidden,
		fmt.Sprintf("missing required permission: %s", permission)).
		WithMetadata("permission", permission)
}

// ErrNotFound creates a not_found error.
func ErrNotFound(resource string) AppError {
	return New(constants.ErrCodeNotFound, http.StatusNotFound,
		fmt.Sprintf("%s not found", resource)).
		WithMetadata("resource", resource)
}

// ErrConflict creates a conflict error.
func ErrConflict(message string) AppError {
	return New(constants.ErrCodeConflict, http.StatusConflict, message)
}

// ErrRateLimitExceeded creates a retryable rate_limit_exceeded error carrying
// the advisory retry-after seconds.
func ErrRateLimitExceeded(retryAfterSeconds float64) AppError {
	return New(constants.ErrCodeRateLimitExceeded, http.StatusTooManyRequests,
		"rate limit exceeded").
		WithMetadata("retry_after", retryAfterSeconds)
}

// ErrServerError creates a server_error error.
func ErrServerError(message string) AppError {
	return New(constants.ErrCodeServerError, http.StatusInternalServerError, message)
}

// ErrServiceUnavailable creates a service_unavailable error.
func ErrServiceUnavailable(message string) AppError {
	return New(constants.ErrCodeServiceUnavailable, http.StatusServiceUnavailable, message)
}

// ================================================================================
// Helpers
// ================================================================================

// AsAppError extracts an AppError from an error chain, or wraps err as a
// server_error when it is not an AppError.
func AsAppError(err error) AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(AppError); ok {
		return appErr
	}
	return ErrServerError("internal error").WithCause(err)
}
