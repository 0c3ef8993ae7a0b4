// Package errors provides a structured error system for PreNav with error codes, categories, and context.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for PreNav operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Routing errors
	ErrCodeRouteUnresolved ErrorCode = "ROUTE_UNRESOLVED"
	ErrCodeRouteConflict   ErrorCode = "ROUTE_CONFLICT"

	// Fetch errors
	ErrCodeFetchFailed     ErrorCode = "FETCH_FAILED"
	ErrCodeFetchTimeout    ErrorCode = "FETCH_TIMEOUT"
	ErrCodeNetworkError    ErrorCode = "NETWORK_ERROR"
	ErrCodePatternFetch    ErrorCode = "PATTERN_FETCH"
	ErrCodeFetcherMissing  ErrorCode = "FETCHER_MISSING"
	ErrCodeRendererMissing ErrorCode = "RENDERER_MISSING"

	// Cache errors
	ErrCodeCacheFull    ErrorCode = "CACHE_FULL"
	ErrCodeEntryExpired ErrorCode = "ENTRY_EXPIRED"
	ErrCodeEntryStale   ErrorCode = "ENTRY_STALE"

	// Snapshot errors
	ErrCodeSnapshotEncode ErrorCode = "SNAPSHOT_ENCODE"
	ErrCodeSnapshotDecode ErrorCode = "SNAPSHOT_DECODE"
	ErrCodeSnapshotStore  ErrorCode = "SNAPSHOT_STORE"

	// State errors
	ErrCodeNotInitialized   ErrorCode = "NOT_INITIALIZED"
	ErrCodeComponentStopped ErrorCode = "COMPONENT_STOPPED"

	// Operation errors
	ErrCodeOperationTimeout  ErrorCode = "OPERATION_TIMEOUT"
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeRetryExhausted    ErrorCode = "RETRY_EXHAUSTED"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryRouting       ErrorCategory = "routing"
	CategoryFetch         ErrorCategory = "fetch"
	CategoryCache         ErrorCategory = "cache"
	CategorySnapshot      ErrorCategory = "snapshot"
	CategoryState         ErrorCategory = "state"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// PreNavError represents a structured error with context and metadata.
type PreNavError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *PreNavError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *PreNavError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *PreNavError) Is(target error) bool {
	if navErr, ok := target.(*PreNavError); ok {
		return e.Code == navErr.Code
	}
	return false
}

// JSON returns the error as a JSON string.
func (e *PreNavError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new PreNav error with default values.
func NewError(code ErrorCode, message string) *PreNavError {
	return &PreNavError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
		Retryable: IsRetryableByDefault(code),
	}
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "ROUTE_"):
		return CategoryRouting
	case strings.HasPrefix(codeStr, "FETCH") || strings.HasPrefix(codeStr, "NETWORK_") ||
		strings.HasPrefix(codeStr, "PATTERN_") || strings.HasSuffix(codeStr, "_MISSING"):
		return CategoryFetch
	case strings.HasPrefix(codeStr, "CACHE_") || strings.HasPrefix(codeStr, "ENTRY_"):
		return CategoryCache
	case strings.HasPrefix(codeStr, "SNAPSHOT_"):
		return CategorySnapshot
	case strings.HasPrefix(codeStr, "NOT_INITIALIZED") || strings.HasPrefix(codeStr, "COMPONENT_"):
		return CategoryState
	case strings.HasPrefix(codeStr, "OPERATION_") || strings.HasPrefix(codeStr, "RETRY_"):
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeFetchFailed:      true,
		ErrCodeFetchTimeout:     true,
		ErrCodeNetworkError:     true,
		ErrCodePatternFetch:     true,
		ErrCodeSnapshotStore:    true,
		ErrCodeOperationTimeout: true,
	}
	return retryableCodes[code]
}

// WithContext adds contextual information to an error.
func (e *PreNavError) WithContext(key, value string) *PreNavError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error.
func (e *PreNavError) WithComponent(component string) *PreNavError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *PreNavError) WithOperation(operation string) *PreNavError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *PreNavError) WithCause(cause error) *PreNavError {
	e.Cause = cause
	return e
}

// WithRetryable overrides the default retryability for an error.
func (e *PreNavError) WithRetryable(retryable bool) *PreNavError {
	e.Retryable = retryable
	return e
}

// Wrap wraps an existing error with a PreNav error code and message.
func Wrap(err error, code ErrorCode, message string) *PreNavError {
	return NewError(code, message).WithCause(err)
}

// IsRetryable reports whether err (or any error in its chain) is a
// retryable PreNav error.
func IsRetryable(err error) bool {
	for err != nil {
		if navErr, ok := err.(*PreNavError); ok {
			return navErr.Retryable
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// CodeOf extracts the error code from err, or ErrCodeInternalError when err
// is not a PreNav error.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if navErr, ok := err.(*PreNavError); ok {
			return navErr.Code
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrCodeInternalError
}
