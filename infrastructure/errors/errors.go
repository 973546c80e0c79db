// Package errors provides unified error handling for the analytics service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code.
type ErrorCode string

const (
	// Authentication errors (1xxx) — the configured upstream credential was
	// rejected, or a caller-facing endpoint requires one that is missing.
	ErrCodeUnauthorized ErrorCode = "AUTH_1001"
	ErrCodeInvalidToken ErrorCode = "AUTH_1002"

	// Validation errors (3xxx)
	ErrCodeInvalidInput     ErrorCode = "VAL_3001"
	ErrCodeMissingParameter ErrorCode = "VAL_3002"
	ErrCodeInvalidFormat    ErrorCode = "VAL_3003"
	ErrCodeOutOfRange       ErrorCode = "VAL_3004"

	// Resource errors (4xxx)
	ErrCodeNotFound      ErrorCode = "RES_4001"
	ErrCodeAlreadyExists ErrorCode = "RES_4002"
	ErrCodeConflict      ErrorCode = "RES_4003"

	// Service errors (5xxx)
	ErrCodeInternal          ErrorCode = "SVC_5001"
	ErrCodeDatabaseError     ErrorCode = "SVC_5002"
	ErrCodeUpstreamError     ErrorCode = "SVC_5003"
	ErrCodeTimeout           ErrorCode = "SVC_5004"
	ErrCodeRateLimitExceeded ErrorCode = "SVC_5005"
	ErrCodeNetwork           ErrorCode = "SVC_5006"
	ErrCodeIntegrity         ErrorCode = "SVC_5007"
	ErrCodeCancelled         ErrorCode = "SVC_5008"
)

// ServiceError represents a structured error with code, message, and HTTP status.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError.
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error with a ServiceError.
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Authentication errors

func Unauthorized(message string) *ServiceError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func InvalidToken(err error) *ServiceError {
	return Wrap(ErrCodeInvalidToken, "upstream rejected the configured credential", http.StatusUnauthorized, err)
}

// Validation errors

func InvalidInput(field, reason string) *ServiceError {
	return New(ErrCodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func MissingParameter(param string) *ServiceError {
	return New(ErrCodeMissingParameter, "missing required parameter", http.StatusBadRequest).
		WithDetails("parameter", param)
}

func InvalidFormat(field, expected string) *ServiceError {
	return New(ErrCodeInvalidFormat, "invalid format", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("expected", expected)
}

func OutOfRange(field string, minValue, maxValue interface{}) *ServiceError {
	return New(ErrCodeOutOfRange, "value out of range", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("min", minValue).
		WithDetails("max", maxValue)
}

// Resource errors

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func AlreadyExists(resource, id string) *ServiceError {
	return New(ErrCodeAlreadyExists, "resource already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// Service errors

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

func DatabaseError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeDatabaseError, "database operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

// UpstreamError wraps an upstream marketing API failure that has no more
// specific code: a 5xx, an unexpected status, or an open circuit breaker.
// IsRetryable treats it as retryable.
func UpstreamError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeUpstreamError, "upstream API call failed", http.StatusBadGateway, err).
		WithDetails("operation", operation)
}

// Network wraps a connection-level failure talking to the upstream API
// (DNS, TCP reset, TLS handshake) — distinct from a 5xx response.
func Network(operation string, err error) *ServiceError {
	return Wrap(ErrCodeNetwork, "network error calling upstream", http.StatusBadGateway, err).
		WithDetails("operation", operation)
}

func Timeout(operation string) *ServiceError {
	return New(ErrCodeTimeout, "operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

// RateLimitExceeded is returned both for our own client-facing rate limit
// and for an upstream 429 that survived retries. retryAfterSeconds may be
// zero when unknown.
func RateLimitExceeded(limit int, window string, retryAfterSeconds int) *ServiceError {
	e := New(ErrCodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
	if retryAfterSeconds > 0 {
		e.WithDetails("retryAfter", retryAfterSeconds)
	}
	return e
}

// Integrity wraps a constraint violation surfaced by the database (foreign
// key, unique index) that indicates a data-consistency problem rather than
// a transient failure.
func Integrity(operation string, err error) *ServiceError {
	return Wrap(ErrCodeIntegrity, "data integrity constraint violated", http.StatusConflict, err).
		WithDetails("operation", operation)
}

// Cancelled wraps context.Canceled / context.DeadlineExceeded surfaced from
// a caller-initiated cancellation (e.g. shutdown mid sync job).
func Cancelled(operation string, err error) *ServiceError {
	return Wrap(ErrCodeCancelled, "operation was cancelled", 499, err).
		WithDetails("operation", operation)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError.
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error.
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether err represents a transient condition worth
// retrying (rate limit, network, timeout, upstream error, or a database error flagged as
// transient by the repository layer via ErrCodeDatabaseError with a
// "transient" detail).
func IsRetryable(err error) bool {
	se := GetServiceError(err)
	if se == nil {
		return false
	}
	switch se.Code {
	case ErrCodeRateLimitExceeded, ErrCodeNetwork, ErrCodeTimeout, ErrCodeUpstreamError:
		return true
	case ErrCodeDatabaseError:
		transient, _ := se.Details["transient"].(bool)
		return transient
	default:
		return false
	}
}
