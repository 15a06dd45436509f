package casport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory represents the classified outcome of a failed resolution.
type ErrorCategory string

const (
	ErrorCategoryMissingIdentity     ErrorCategory = "missing_identity"
	ErrorCategoryUserNotFound        ErrorCategory = "user_not_found"
	ErrorCategoryUpstreamUnavailable ErrorCategory = "upstream_unavailable"
	ErrorCategoryInvalidUserData     ErrorCategory = "invalid_user_data"
	ErrorCategoryCacheUnavailable    ErrorCategory = "cache_unavailable"
	ErrorCategoryCanceled            ErrorCategory = "canceled"
	ErrorCategoryConfiguration       ErrorCategory = "configuration"
	ErrorCategoryUnknown             ErrorCategory = "unknown"
)

// ResolutionError provides classified error information for pipeline operations.
type ResolutionError struct {
	Operation  string        // The operation that failed
	Category   ErrorCategory // Error category
	Identity   string        // Normalized identity involved (if applicable)
	StatusCode int           // Directory HTTP status code (if applicable)
	Message    string        // Human-readable message
	Retryable  bool          // Whether the caller may retry
	Cause      error         // Underlying error
}

func (e *ResolutionError) Error() string {
	var parts []string

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("casport %s failed (status %d)", e.Operation, e.StatusCode))
	} else {
		parts = append(parts, fmt.Sprintf("casport %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Cause != nil && e.Cause.Error() != e.Message {
		parts = append(parts, fmt.Sprintf("cause: %s", e.Cause.Error()))
	}

	if e.Identity != "" {
		parts = append(parts, fmt.Sprintf("identity: %s", e.Identity))
	}

	return strings.Join(parts, " - ")
}

func (e *ResolutionError) IsRetryable() bool {
	return e.Retryable
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// GetCategory returns the error category.
func (e *ResolutionError) GetCategory() ErrorCategory {
	return e.Category
}

// NewResolutionError creates a classified error. Only upstream failures are retryable.
func NewResolutionError(operation string, category ErrorCategory, identity, message string, cause error) *ResolutionError {
	return &ResolutionError{
		Operation: operation,
		Category:  category,
		Identity:  identity,
		Message:   message,
		Retryable: category == ErrorCategoryUpstreamUnavailable,
		Cause:     cause,
	}
}

// canceledError classifies a context error. Callers check ctx.Err() first.
func canceledError(operation, identity string, err error) *ResolutionError {
	return NewResolutionError(operation, ErrorCategoryCanceled, identity, "resolution canceled by caller", err)
}

// GetErrorCategory returns the category of err, or ErrorCategoryUnknown.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr.Category
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryCanceled
	}

	return ErrorCategoryUnknown
}

// IsRetryableError reports whether the caller may retry the failed operation.
func IsRetryableError(err error) bool {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr.IsRetryable()
	}
	return false
}

func IsMissingIdentity(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryMissingIdentity
}

func IsUserNotFound(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryUserNotFound
}

func IsUpstreamUnavailable(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryUpstreamUnavailable
}

func IsInvalidUserData(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryInvalidUserData
}

func IsCacheUnavailable(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryCacheUnavailable
}

func IsCanceled(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryCanceled
}
