// Package dto defines the HTTP API contract: request bodies with their
// validation, the response envelope, and errors carrying a status code.
//
// Every JSON response other than /api, /api/health and the route-not-found
// reply uses the envelope:
//
//	{"success": true, "data": ..., "message": "..."}
//	{"success": false, "message": "...", "code": "NOT_FOUND"}
package dto

import (
	"fmt"
	"maps"
	"net/http"
	"strconv"
)

// ErrorCode is a machine readable error class.
type ErrorCode string

const (
	// ErrorCodeValidationFailed is returned when input data fails validation.
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeMissingField is returned when a required field is missing.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeInvalidFormat is returned when a field has an invalid format.
	ErrorCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	// ErrorCodeNotFound is returned when a resource or route does not exist.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeStorageError is returned when the content could not be saved.
	ErrorCodeStorageError ErrorCode = "STORAGE_ERROR"
	// ErrorCodeInternal is returned when an unexpected server error occurs.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeUnauthorized is returned when the admin token is missing or invalid.
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorCodeRateLimitExceeded is returned with a 429.
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrorCodePayloadTooLarge is returned when a body exceeds the limit.
	ErrorCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrorCodeUnavailable is returned when an optional feature is not configured.
	ErrorCodeUnavailable ErrorCode = "UNAVAILABLE"
)

// ErrorWithStatus is an error that knows its HTTP status and public message.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Message() string
	Details() map[string]any
}

// APIError is the concrete ErrorWithStatus.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError returns an APIError.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{statusCode: statusCode, code: code, message: message}
}

// WithDetails merges details into the error.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any, len(details))
	}
	maps.Copy(e.details, details)
	return e
}

// WithDetail adds one detail.
func (e *APIError) WithDetail(key string, value any) *APIError {
	return e.WithDetails(map[string]any{key: value})
}

// Wrap records the underlying cause. It is logged but never sent to clients.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int { return e.statusCode }

// Code returns the error code.
func (e *APIError) Code() ErrorCode { return e.code }

// Message returns the client facing message.
func (e *APIError) Message() string { return e.message }

// Details returns the extra fields, possibly nil.
func (e *APIError) Details() map[string]any { return e.details }

// Unwrap returns the wrapped cause.
func (e *APIError) Unwrap() error { return e.wrappedErr }

// NotFound returns a 404, e.g. NotFound("News item").
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, resource+" not found")
}

// BadRequest returns a 400.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

// MissingField returns a 400 naming the field.
func MissingField(field string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeMissingField, "Missing required field: "+field).WithDetail("field", field)
}

// InvalidField returns a 400 naming the field and the problem.
func InvalidField(field, reason string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeInvalidFormat, field+" "+reason).WithDetail("field", field)
}

// Unauthorized returns a 401.
func Unauthorized(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrorCodeUnauthorized, message)
}

// Internal returns a 500.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, message)
}

// InternalWithError returns a 500 wrapping err.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}

// StorageError returns a 500 for a failed save.
func StorageError(message string, err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeStorageError, message).Wrap(err)
}

// PayloadTooLarge returns a 413.
func PayloadTooLarge(limit int64) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge,
		"Request body exceeds "+strconv.FormatInt(limit, 10)+" bytes").WithDetail("limit", limit)
}

// RateLimitExceeded returns a 429.
func RateLimitExceeded(retryAfter int) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrorCodeRateLimitExceeded, "Too many requests, try again later").
		WithDetail("retryAfter", retryAfter)
}

// Unavailable returns a 503 for a feature that is not configured.
func Unavailable(feature string) *APIError {
	return NewAPIError(http.StatusServiceUnavailable, ErrorCodeUnavailable, feature+" is not configured")
}
