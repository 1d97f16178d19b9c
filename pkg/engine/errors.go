package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error crossing the search boundary.
type ErrorClass string

const (
	// ErrorClassConfiguration indicates the search was rejected before it started.
	// Examples: empty action pool, restart probability outside [0,1), invalid problem.
	ErrorClassConfiguration ErrorClass = "configuration"

	// ErrorClassSearch indicates a fatal failure while the search was running.
	// Examples: oracle malfunction, lifting failure, post-success integrity mismatch.
	ErrorClassSearch ErrorClass = "search"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Operation is the phase being performed when the error occurred (ground, search, lift...).
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConfiguration,
		Message: message,
		Err:     err,
	}
}

// NewSearchError creates a new search error.
func NewSearchError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassSearch,
		Message: message,
		Err:     err,
	}
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsConfiguration returns true if the error is classified as a configuration error.
func IsConfiguration(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConfiguration
	}
	return false
}

// IsSearch returns true if the error is classified as a search error.
func IsSearch(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassSearch
	}
	return false
}

// HasCode returns true if any EngineError in the chain carries the given code.
func HasCode(err error, code string) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ClassOf returns the class and code of the outermost EngineError in the chain.
// Errors outside the taxonomy are reported as search errors with an internal code.
func ClassOf(err error) (ErrorClass, string) {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class, e.Code
	}
	return ErrorClassSearch, ErrCodeInternal
}

// Common error codes.
const (
	ErrCodeEmptyPool         = "EMPTY_ACTION_POOL"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
	ErrCodeInvalidProblem    = "INVALID_PROBLEM"
	ErrCodePolicyViolation   = "POLICY_VIOLATION"
	ErrCodeOracleFailed      = "ORACLE_FAILED"
	ErrCodeGroundingFailed   = "GROUNDING_FAILED"
	ErrCodeLiftFailed        = "LIFT_FAILED"
	ErrCodeIntegrityMismatch = "INTEGRITY_MISMATCH"
	ErrCodeInternal          = "INTERNAL_ERROR"
)
