package changes

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes contract violations.
type ErrorCode string

const (
	// ErrCodeMissingPreviousFingerprint indicates a present property has no
	// previous fingerprint while changes were requested incrementally.
	ErrCodeMissingPreviousFingerprint ErrorCode = "MISSING_PREVIOUS_FINGERPRINT"

	// ErrCodeUnknownProperty indicates a query for a property the current
	// snapshot does not declare.
	ErrCodeUnknownProperty ErrorCode = "UNKNOWN_PROPERTY"

	// ErrCodePropertyNotFound indicates no declared property holds the value.
	ErrCodePropertyNotFound ErrorCode = "PROPERTY_NOT_FOUND"

	// ErrCodeAmbiguousProperty indicates more than one property holds the value.
	ErrCodeAmbiguousProperty ErrorCode = "AMBIGUOUS_PROPERTY"

	// ErrCodeUncomparableValue indicates a value that cannot key the index.
	ErrCodeUncomparableValue ErrorCode = "UNCOMPARABLE_VALUE"
)

// ContractError reports inconsistent declarations of a unit of work.
// These are programming errors: callers abort the execution, never retry.
type ContractError struct {
	// Code identifies the violation.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Property names the offending property, when known.
	Property string

	// Candidates lists the property names a value resolved to (ambiguity).
	Candidates []string
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsContractViolation reports whether err is (or wraps) a ContractError.
func IsContractViolation(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// IsResolutionError reports whether err is a failed value -> property lookup.
func IsResolutionError(err error) bool {
	switch CodeOf(err) {
	case ErrCodePropertyNotFound, ErrCodeAmbiguousProperty, ErrCodeUncomparableValue:
		return true
	default:
		return false
	}
}

// CodeOf returns the ContractError code of err, or "" when err is not one.
func CodeOf(err error) ErrorCode {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func newMissingPreviousError(title, property string) *ContractError {
	return &ContractError{
		Code:     ErrCodeMissingPreviousFingerprint,
		Message:  fmt.Sprintf("no previous fingerprint for %s property '%s'", strings.ToLower(title), property),
		Property: property,
	}
}

func newUnknownPropertyError(title, property string) *ContractError {
	return &ContractError{
		Code:     ErrCodeUnknownProperty,
		Message:  fmt.Sprintf("no current fingerprint for %s property '%s'", strings.ToLower(title), property),
		Property: property,
	}
}

func newNotFoundError(value any) *ContractError {
	return &ContractError{
		Code:    ErrCodePropertyNotFound,
		Message: fmt.Sprintf("cannot query incremental changes: no property found for value %v", value),
	}
}

func newAmbiguousError(value any, names []string) *ContractError {
	return &ContractError{
		Code:       ErrCodeAmbiguousProperty,
		Message:    fmt.Sprintf("cannot query incremental changes: more than one property found with value %v: [%s]", value, strings.Join(names, ", ")),
		Candidates: names,
	}
}

func newUncomparableError(value any, property string) *ContractError {
	return &ContractError{
		Code:     ErrCodeUncomparableValue,
		Message:  fmt.Sprintf("value of type %T for property '%s' cannot be used as a lookup key", value, property),
		Property: property,
	}
}
