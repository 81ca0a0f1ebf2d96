package model

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an adapter error.
type ErrorType string

const (
	// ErrorTypeCredentials marks a failed credential check, either a missing
	// required credential or a failed validation call.
	ErrorTypeCredentials ErrorType = "credentials_validate_failed"

	// ErrorTypeInvoke is the single kind every vendor call failure collapses into.
	ErrorTypeInvoke ErrorType = "invoke_error"

	// ErrorTypeValidation marks a request rejected before any network call.
	ErrorTypeValidation ErrorType = "validation_error"
)

// Error is the error type returned by the adapters.
type Error struct {
	Type    ErrorType `json:"type"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`

	// Cause is the underlying vendor or transport error, if any.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewCredentialsError creates an Error for missing or rejected credentials.
func NewCredentialsError(message string) *Error {
	return &Error{
		Type:    ErrorTypeCredentials,
		Message: message,
	}
}

// NewInvokeError creates an Error wrapping a failed vendor call.
func NewInvokeError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInvoke,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates an Error for a request rejected locally.
func NewValidationError(param, message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Param:   param,
		Message: message,
	}
}

// IsCredentialsError reports whether err is a credentials error.
func IsCredentialsError(err error) bool {
	return hasType(err, ErrorTypeCredentials)
}

// IsInvokeError reports whether err is an invoke error.
func IsInvokeError(err error) bool {
	return hasType(err, ErrorTypeInvoke)
}

// IsValidationError reports whether err is a validation error.
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

func hasType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}
