package types

import (
	"net/http"
	"strings"
)

// ErrorCode represents specific error codes for API responses
type ErrorCode string

const (
	ErrorCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorCodeInvalidProvider  ErrorCode = "INVALID_PROVIDER"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeConflict         ErrorCode = "CONFLICT"
	ErrorCodeLockTimeout      ErrorCode = "LOCK_TIMEOUT"
	ErrorCodeStorageError     ErrorCode = "STORAGE_ERROR"
	ErrorCodeQueueError       ErrorCode = "QUEUE_ERROR"
	ErrorCodeProviderError    ErrorCode = "PROVIDER_ERROR"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// APIError represents a structured error returned by the webhook HTTP surface.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

func (e APIError) Error() string {
	return e.Message
}

func NewAPIError(code ErrorCode, message string, httpStatus int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

var (
	ErrUnauthorized = NewAPIError(
		ErrorCodeUnauthorized,
		"webhook signature verification failed",
		http.StatusUnauthorized,
	)

	ErrInvalidProvider = NewAPIError(
		ErrorCodeInvalidProvider,
		"invalid agent provider",
		http.StatusBadRequest,
	)

	ErrLockTimeout = NewAPIError(
		ErrorCodeLockTimeout,
		"timed out waiting for user directory lock",
		http.StatusServiceUnavailable,
	)

	ErrInternalError = NewAPIError(
		ErrorCodeInternalError,
		"an internal error occurred",
		http.StatusInternalServerError,
	)
)

// ProviderErrorFromMessage classifies a raw provider error string into an APIError.
func ProviderErrorFromMessage(err error) *APIError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case contains(msg, "401", "unauthorized", "invalid_api_key"):
		return NewAPIError(ErrorCodeProviderError, "invalid provider API key", http.StatusBadGateway).WithDetails(msg)
	case contains(msg, "rate_limit", "rate limit", "429"):
		return NewAPIError(ErrorCodeProviderError, "provider rate limit exceeded", http.StatusTooManyRequests).WithDetails(msg)
	case contains(msg, "model_not_found", "model not found"):
		return NewAPIError(ErrorCodeInvalidProvider, "model not available", http.StatusBadRequest).WithDetails(msg)
	default:
		return NewAPIError(ErrorCodeProviderError, "provider request failed", http.StatusBadGateway).WithDetails(msg)
	}
}

func contains(str string, substrings ...string) bool {
	lowerStr := strings.ToLower(str)
	for _, substr := range substrings {
		if strings.Contains(lowerStr, strings.ToLower(substr)) {
			return true
		}
	}
	return false
}
