// Package errors defines the application error taxonomy: domain errors
// carrying a typed category for logs and batch reporting, and
// structured API errors for the results server. Data-quality conditions
// are deliberately NOT errors; they degrade to null cells inside the
// pipeline and surface through guardrail tags.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType categorizes a domain error.
type ErrorType string

const (
	ErrTypeNetwork    ErrorType = "NETWORK"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError is an application error with a typed category and optional
// structured context.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a key-value pair to the error context.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewNetworkError creates a network error.
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeNetwork, Message: message, Cause: cause}
}

// NewParsingError creates a parsing error.
func NewParsingError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeParsing, Message: message, Cause: cause}
}

// NewStorageError creates a storage error.
func NewStorageError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeStorage, Message: message, Cause: cause}
}

// NewValidationError creates a validation error.
func NewValidationError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: message, Cause: cause}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: message}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: message, Cause: cause}
}

// IsType reports whether err, anywhere in its chain, is an AppError of
// the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Type == t
}
