package utils

import (
	"errors"
	"fmt"
)

// ValidationError represents an error occurring during request or
// configuration validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFoundError indicates that a requested series does not exist in storage.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError for the given resource and ID.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// InvalidColumnError indicates that a feature was requested on a column the
// series does not carry.
type InvalidColumnError struct {
	Column string
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("column does not exist on series: %s", e.Column)
}

// NewInvalidColumnError creates a new InvalidColumnError for the given column.
func NewInvalidColumnError(column string) error {
	return &InvalidColumnError{
		Column: column,
	}
}

// PersistenceError indicates that a storage write did not complete. It is
// reported to the caller but does not invalidate the in-memory result.
type PersistenceError struct {
	Operation string
	Cause     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Operation, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// NewPersistenceError creates a new PersistenceError wrapping the cause.
func NewPersistenceError(operation string, cause error) error {
	return &PersistenceError{
		Operation: operation,
		Cause:     cause,
	}
}

// TransformError indicates an unexpected failure inside a pipeline stage.
type TransformError struct {
	Stage string
	Cause error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed at stage %s: %v", e.Stage, e.Cause)
}

func (e *TransformError) Unwrap() error {
	return e.Cause
}

// NewTransformError creates a new TransformError wrapping the cause.
func NewTransformError(stage string, cause error) error {
	return &TransformError{
		Stage: stage,
		Cause: cause,
	}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidColumn reports whether err is an InvalidColumnError.
func IsInvalidColumn(err error) bool {
	var ic *InvalidColumnError
	return errors.As(err, &ic)
}

// IsPersistenceError reports whether err is a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
