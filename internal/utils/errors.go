package utils

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-readable reason attached to the typed errors below.
type ErrorCode string

const (
	// Input errors
	CodeEmptyFile        ErrorCode = "EmptyFile"
	CodeInvalidExtension ErrorCode = "InvalidExtension"
	CodeMissingColumn    ErrorCode = "MissingColumn"
	CodeMalformedRow     ErrorCode = "MalformedRow"
	CodeInvalidArgument  ErrorCode = "InvalidArgument"

	// Validation errors
	CodeEmptyDataset    ErrorCode = "EmptyDataset"
	CodeOutOfBounds     ErrorCode = "OutOfBounds"
	CodeInvalidWindow   ErrorCode = "InvalidWindow"
	CodeWindowOrder     ErrorCode = "WindowOrder"
	CodeStaleGeneration ErrorCode = "StaleGeneration"
	CodeNoRecords       ErrorCode = "NoRecords"

	// Upstream errors
	CodePredictorUnavailable ErrorCode = "PredictorUnavailable"
	CodeMalformedResponse    ErrorCode = "MalformedResponse"
	CodeTrainingFailed       ErrorCode = "TrainingFailed"
)

// InputError represents a rejected upload or request argument. No state is mutated.
type InputError struct {
	Code    ErrorCode
	Message string
}

// Error returns the error message string.
func (e *InputError) Error() string {
	return e.Message
}

// NewInputError creates a new InputError with a specific code and message.
func NewInputError(code ErrorCode, message string) error {
	return &InputError{Code: code, Message: message}
}

// NewInputErrorf creates a new InputError with a formatted message.
func NewInputErrorf(code ErrorCode, format string, args ...interface{}) error {
	return &InputError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Code    ErrorCode
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
//
// Parameters:
//   - code: The machine-readable reason.
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationError(code ErrorCode, message string) error {
	return &ValidationError{
		Code:    code,
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
//
// Parameters:
//   - code: The machine-readable reason.
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationErrorf(code ErrorCode, format string, args ...interface{}) error {
	return &ValidationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// UpstreamError represents a failure of the external predictor service.
type UpstreamError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the error message string.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError wraps err as an UpstreamError.
func NewUpstreamError(code ErrorCode, message string, err error) error {
	return &UpstreamError{Code: code, Message: message, Err: err}
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not one of the typed errors.
func CodeOf(err error) ErrorCode {
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return inputErr.Code
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
