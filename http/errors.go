package http

import (
	"errors"
	"fmt"
	nethttp "net/http"
)

// ClientError represents the failure categories surfaced by the executor.
// Context cancellation is not wrapped: callers see ctx.Err() unchanged.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NetworkError    ErrorType = "network"
	ValidationError ErrorType = "validation"
	RetryExhausted  ErrorType = "exhausted"
)

// ExhaustedError is returned when every attempt ended with a retryable status.
type ExhaustedError struct {
	StatusCode int
	URL        string
	Attempts   int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempts with status %d %s",
		e.URL, e.Attempts, e.StatusCode, nethttp.StatusText(e.StatusCode))
}

func (e *ExhaustedError) Type() ErrorType {
	return RetryExhausted
}

// networkError represents network-related errors
type networkError struct {
	message string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Type() ErrorType {
	return NetworkError
}

func (e *networkError) Unwrap() error {
	return e.wrapped
}

// validationError represents a request that could not be constructed
type validationError struct {
	message string
	field   string
	wrapped error
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType {
	return ValidationError
}

func (e *validationError) Unwrap() error {
	return e.wrapped
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, wrapped error) ClientError {
	return &networkError{
		message: message,
		wrapped: wrapped,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{
		message: message,
		field:   field,
	}
}

func newConstructionError(field string, err error) ClientError {
	return &validationError{
		message: err.Error(),
		field:   field,
		wrapped: err,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsExhausted reports whether err is an ExhaustedError and returns it.
func IsExhausted(err error) (*ExhaustedError, bool) {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted, true
	}
	return nil, false
}

// IsRetryableStatus reports whether a response status is worth retrying:
// 429, 500, 502, 503 and 504. Every other code is final.
func IsRetryableStatus(code int) bool {
	switch code {
	case nethttp.StatusTooManyRequests,
		nethttp.StatusInternalServerError,
		nethttp.StatusBadGateway,
		nethttp.StatusServiceUnavailable,
		nethttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
