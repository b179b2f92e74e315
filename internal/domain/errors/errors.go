package errors

import (
	"errors"
	"fmt"
)

var (
	// Order errors
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderKeyNotFound       = errors.New("order key not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateOrderKey      = errors.New("duplicate order key")

	// Webhook errors
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// Gateway errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayDisabled    = errors.New("payment gateway is disabled")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// GatewayError reports a failed request to the external gateway service:
// either a transport failure or a response status outside the accepted set.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway request %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway request %s failed: status %d, data: %s", e.Op, e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError wraps a transport-level failure.
func NewGatewayError(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Err: err}
}

// NewGatewayStatusError reports an unexpected HTTP status from the gateway.
func NewGatewayStatusError(op string, status int, body string) *GatewayError {
	return &GatewayError{Op: op, StatusCode: status, Body: body}
}

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
