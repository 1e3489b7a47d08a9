package common

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the application.
var (
	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrNotModified indicates a conditional fetch returned 304.
	ErrNotModified = errors.New("content not modified")
	// ErrNoEntities indicates content was retrieved but no bounty could be resolved from it.
	ErrNoEntities = errors.New("no entities resolvable from content")
	// ErrCircuitOpen indicates a resource was skipped because its circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrRunDeadline indicates the overall run deadline expired before the resource was started.
	ErrRunDeadline = errors.New("run deadline expired")
	// ErrInvalidConfiguration indicates configuration issues.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// WrapError wraps an error with additional context information.
func WrapError(err error, message string) error {
	if err == nil {
		return fmt.Errorf("%s: <nil>", message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NewError creates a new error with a formatted message.
func NewError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// ValidationError represents validation errors with field-specific information.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NetworkError represents transport-level fetch failures.
type NetworkError struct {
	URL     string
	Reason  string
	Wrapped error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for URL '%s': %s", e.URL, e.Reason)
}

func (e *NetworkError) Unwrap() error {
	return e.Wrapped
}

// NewNetworkError creates a new network error.
func NewNetworkError(url, reason string, wrapped error) *NetworkError {
	return &NetworkError{URL: url, Reason: reason, Wrapped: wrapped}
}

// HTTPError represents a non-2xx response from an upstream.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("HTTP %d error for URL '%s': %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d error: %s", e.StatusCode, e.Message)
}

// NewHTTPErrorWithURL creates a new HTTP error with URL context.
func NewHTTPErrorWithURL(statusCode int, message, url string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message, URL: url}
}

// PersistenceError marks a fingerprint or snapshot store failure. It is fatal
// for the affected resource's state update but must not abort sibling work.
type PersistenceError struct {
	ResourceID string
	Op         string
	Wrapped    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error for resource '%s' during %s: %v", e.ResourceID, e.Op, e.Wrapped)
}

func (e *PersistenceError) Unwrap() error {
	return e.Wrapped
}

// NewPersistenceError creates a new persistence error.
func NewPersistenceError(resourceID, op string, wrapped error) *PersistenceError {
	return &PersistenceError{ResourceID: resourceID, Op: op, Wrapped: wrapped}
}
