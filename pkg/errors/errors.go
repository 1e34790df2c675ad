package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of error for handling
type ErrorCategory string

const (
	CategoryRateLimited    ErrorCategory = "rate_limited"
	CategoryInvalidRequest ErrorCategory = "invalid_request"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryCardDeclined   ErrorCategory = "card_declined"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryIdempotency    ErrorCategory = "idempotency"
	CategoryNetworkError   ErrorCategory = "network_error"
	CategorySystemError    ErrorCategory = "system_error"
)

// GatewayError represents a payment gateway failure with retry classification
type GatewayError struct {
	Err            error
	Code           string
	Message        string
	Operation      string
	Category       ErrorCategory
	HTTPStatusCode int
	IsRetriable    bool
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s: %s)", e.Operation, e.Message, e.Category, e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Operation, e.Message, e.Category)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError creates a new gateway error
func NewGatewayError(operation, message string, category ErrorCategory, retriable bool) *GatewayError {
	return &GatewayError{
		Operation:   operation,
		Message:     message,
		Category:    category,
		IsRetriable: retriable,
	}
}

// IsRetriable reports whether err carries a retriable GatewayError
func IsRetriable(err error) bool {
	var gwErr *GatewayError
	if stderrors.As(err, &gwErr) {
		return gwErr.IsRetriable
	}
	return false
}

// IsNotFound reports whether the gateway answered that the object does not exist
func IsNotFound(err error) bool {
	var gwErr *GatewayError
	if stderrors.As(err, &gwErr) {
		return gwErr.Category == CategoryNotFound
	}
	return false
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
