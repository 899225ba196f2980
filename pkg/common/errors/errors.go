package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the workq library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError for the given module and field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError wraps a failure of a named operation in a module.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches extra detail and returns the same error.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// ProtocolViolation reports a broken lifecycle contract, such as submitting
// work after shutdown. It is raised with panic, never returned: the caller
// has a bug and continuing would silently lose data.
type ProtocolViolation struct {
	// Op names the operation that was misused ("enqueue", "execute", "new").
	Op string

	// Err is the underlying cause.
	Err error
}

// NewProtocolViolation creates a ProtocolViolation for op caused by err.
func NewProtocolViolation(op string, err error) *ProtocolViolation {
	return &ProtocolViolation{Op: op, Err: err}
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation in %s: %v", e.Op, e.Err)
}

func (e *ProtocolViolation) Unwrap() error {
	return e.Err
}

// IsProtocolViolation reports whether a value recovered from a panic is a
// ProtocolViolation, returning it if so.
func IsProtocolViolation(recovered interface{}) (*ProtocolViolation, bool) {
	err, ok := recovered.(error)
	if !ok {
		return nil, false
	}
	var pv *ProtocolViolation
	if errors.As(err, &pv) {
		return pv, true
	}
	return nil, false
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
