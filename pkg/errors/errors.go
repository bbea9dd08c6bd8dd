// Package errors provides custom error types for the VulnFlow pipeline.
// It follows industry best practices (HashiCorp, AWS SDK) for error handling.
package errors

import (
	"errors"
	"fmt"
)

// =============================================================================
// Base Error Types
// =============================================================================

// Error is the base error type for all pipeline errors.
type Error struct {
	// Kind indicates the category of error
	Kind Kind

	// Op is the operation being performed (e.g., "orchestrator.Run")
	Op string

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Kind represents the kind/category of error.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindScan indicates the scanner could not examine the artifact.
	// A scan failure aborts the whole run.
	KindScan

	// KindAnalysis indicates threat analysis failed for a finding.
	KindAnalysis

	// KindGeneration indicates patch generation failed for a finding.
	KindGeneration

	// KindVerification indicates a patch did not pass verification.
	// This is an expected negative outcome, not an infrastructure fault.
	KindVerification

	// KindDeployment indicates applying a patch to the target failed.
	KindDeployment

	// KindLearningConflict indicates concurrent writers raced on the
	// same pattern signature in the learning store.
	KindLearningConflict

	KindInvalidInput
	KindNotFound
	KindTimeout
	KindConflict
	KindNetwork
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindAnalysis:
		return "analysis"
	case KindGeneration:
		return "generation"
	case KindVerification:
		return "verification"
	case KindDeployment:
		return "deployment"
	case KindLearningConflict:
		return "learning_conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindConflict:
		return "conflict"
	case KindNetwork:
		return "network"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// =============================================================================
// Constructors
// =============================================================================

// E constructs an Error from the given arguments.
// Arguments can be: Kind, string (Op or Message), error.
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// New creates a new simple error.
func New(message string) error {
	return &Error{Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapWithMessage wraps an error with a message.
func WrapWithMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// =============================================================================
// Error Checkers
// =============================================================================

// GetKind returns the Kind of the error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsScanError checks if the error is a scan error.
func IsScanError(err error) bool {
	return GetKind(err) == KindScan
}

// IsAnalysisError checks if the error is an analysis error.
func IsAnalysisError(err error) bool {
	return GetKind(err) == KindAnalysis
}

// IsGenerationError checks if the error is a patch generation error.
func IsGenerationError(err error) bool {
	return GetKind(err) == KindGeneration
}

// IsVerificationFailure checks if the error is a verification failure.
// Verification failures are retryable up to the configured attempt limit.
func IsVerificationFailure(err error) bool {
	return GetKind(err) == KindVerification
}

// IsDeploymentFailure checks if the error is a deployment failure.
func IsDeploymentFailure(err error) bool {
	return GetKind(err) == KindDeployment
}

// IsLearningConflict checks if the error is a learning store write conflict.
func IsLearningConflict(err error) bool {
	return GetKind(err) == KindLearningConflict
}

// IsNotFoundError checks if the error is a not found error.
func IsNotFoundError(err error) bool {
	return GetKind(err) == KindNotFound
}

// IsTimeoutError checks if the error is a timeout error.
func IsTimeoutError(err error) bool {
	return GetKind(err) == KindTimeout
}

// IsNetworkError checks if the error is a network error.
func IsNetworkError(err error) bool {
	return GetKind(err) == KindNetwork
}

// IsRetryable checks if the error is retryable.
// Verification failures are retried by the pipeline's own bounded loop,
// so only transient infrastructure kinds count here.
func IsRetryable(err error) bool {
	switch GetKind(err) {
	case KindTimeout, KindNetwork, KindLearningConflict:
		return true
	}
	return false
}

// =============================================================================
// Common Errors
// =============================================================================

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = &Error{Kind: KindTimeout, Message: "operation timed out"}

	// ErrInvalidConfig is returned for invalid configuration.
	ErrInvalidConfig = &Error{Kind: KindInvalidInput, Message: "invalid configuration"}

	// ErrStoreClosed is returned when using a closed learning store.
	ErrStoreClosed = &Error{Kind: KindInternal, Message: "store is closed"}
)
