package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// ErrCodeExecutionFailed indicates the unit body returned an error.
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// ErrCodeTimeout indicates the unit exceeded its declared timeout.
	ErrCodeTimeout ErrorCode = "EXECUTION_TIMEOUT"

	// ErrCodeSnapshotFailed indicates inputs or outputs could not be fingerprinted.
	ErrCodeSnapshotFailed ErrorCode = "SNAPSHOT_FAILED"

	// ErrCodeHistoryFailed indicates the history store could not be read or written.
	ErrCodeHistoryFailed ErrorCode = "HISTORY_FAILED"
)

// ExecutionError reports a failed unit run.
type ExecutionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Unit is the identity of the unit.
	Unit string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (unit=%s): %v", e.Code, e.Message, e.Unit, e.Err)
	}
	return fmt.Sprintf("%s: %s (unit=%s)", e.Code, e.Message, e.Unit)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionFailure returns true if the unit body failed or timed out.
// Uses errors.As to handle wrapped errors.
func IsExecutionFailure(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeExecutionFailed || ee.Code == ErrCodeTimeout
	}
	return false
}

// IsTimeout returns true if the unit exceeded its timeout.
func IsTimeout(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeTimeout
	}
	return false
}

func newExecutionError(code ErrorCode, unit, message string, err error) *ExecutionError {
	return &ExecutionError{Code: code, Unit: unit, Message: message, Err: err}
}
