package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Lookup Errors (*_NOT_FOUND)
	ErrorCodeMemberNotFound       ErrorCode = "MEMBER_NOT_FOUND"
	ErrorCodeTierNotFound         ErrorCode = "TIER_NOT_FOUND"
	ErrorCodeCustomerNotFound     ErrorCode = "CUSTOMER_NOT_FOUND"
	ErrorCodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrorCodePaymentNotFound      ErrorCode = "PAYMENT_NOT_FOUND"

	// Guard Errors
	ErrorCodeMembershipAlreadyCurrent ErrorCode = "MEMBERSHIP_ALREADY_CURRENT"
	ErrorCodeLiveSubscriptionExists   ErrorCode = "LIVE_SUBSCRIPTION_EXISTS"
	ErrorCodeSubscriptionCanceled     ErrorCode = "SUBSCRIPTION_CANCELED"
	ErrorCodeNotEligibleForConversion ErrorCode = "NOT_ELIGIBLE_FOR_CONVERSION"
	ErrorCodePaymentNotOwned          ErrorCode = "PAYMENT_NOT_OWNED"

	// Concurrency Errors
	ErrorCodeLockHeld ErrorCode = "LOCK_HELD"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError ErrorCode = "GATEWAY_ERROR"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so wrapped copies of a
// sentinel still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithDetail returns a copy of the error with a detail field added.
// Sentinels are shared, so they are never mutated in place.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Err: e.Err, Details: details, Code: e.Code, Message: e.Message}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a lookup miss
func IsNotFoundError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeMemberNotFound, ErrorCodeTierNotFound, ErrorCodeCustomerNotFound,
		ErrorCodeSubscriptionNotFound, ErrorCodePaymentNotFound:
		return true
	}
	return false
}

// IsGuardError checks if an error is a refused command (a state conflict, not a failure)
func IsGuardError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeMembershipAlreadyCurrent, ErrorCodeLiveSubscriptionExists,
		ErrorCodeSubscriptionCanceled, ErrorCodeNotEligibleForConversion:
		return true
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorCode(err) == ErrorCodeValidationFailed
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	return GetErrorCode(err) == ErrorCodeGatewayError
}

var (
	ErrMemberNotFound       = NewDomainError(ErrorCodeMemberNotFound, "member not found")
	ErrTierNotFound         = NewDomainError(ErrorCodeTierNotFound, "membership tier not found")
	ErrCustomerNotFound     = NewDomainError(ErrorCodeCustomerNotFound, "customer not found")
	ErrNoSubscription       = NewDomainError(ErrorCodeSubscriptionNotFound, "no subscription found")
	ErrSubscriptionNotFound = ErrNoSubscription
	ErrPaymentNotFound      = NewDomainError(ErrorCodePaymentNotFound, "payment not found")

	ErrMembershipAlreadyCurrent = NewDomainError(ErrorCodeMembershipAlreadyCurrent, "membership is current and renews automatically")
	ErrLiveSubscriptionExists   = NewDomainError(ErrorCodeLiveSubscriptionExists, "a live subscription already exists, reactivate it instead")
	ErrSubscriptionCanceled     = NewDomainError(ErrorCodeSubscriptionCanceled, "subscription is canceled, enrol again")
	ErrNotEligibleForConversion = NewDomainError(ErrorCodeNotEligibleForConversion, "membership is not a current one-time payment")
	ErrPaymentNotOwned          = NewDomainError(ErrorCodePaymentNotOwned, "payment does not belong to member")

	ErrLockHeld = NewDomainError(ErrorCodeLockHeld, "another operation is in progress")

	ErrGatewayError     = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrValidationFailed = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrInternalError    = NewDomainError(ErrorCodeInternalError, "internal server error")
)
