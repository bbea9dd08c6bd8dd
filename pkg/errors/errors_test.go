// Package errors provides custom error types for the VulnFlow pipeline.
package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindUnknown, "unknown"},
		{KindScan, "scan"},
		{KindAnalysis, "analysis"},
		{KindGeneration, "generation"},
		{KindVerification, "verification"},
		{KindDeployment, "deployment"},
		{KindLearningConflict, "learning_conflict"},
		{KindInvalidInput, "invalid_input"},
		{KindNotFound, "not_found"},
		{KindTimeout, "timeout"},
		{KindConflict, "conflict"},
		{KindNetwork, "network"},
		{KindInternal, "internal"},
		{Kind(99), "unknown"}, // Invalid kind
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "op and message and err",
			err:      &Error{Op: "orchestrator.Run", Message: "scan failed", Err: fmt.Errorf("artifact unreadable")},
			expected: "orchestrator.Run: scan failed: artifact unreadable",
		},
		{
			name:     "op and message",
			err:      &Error{Op: "orchestrator.Run", Message: "scan failed"},
			expected: "orchestrator.Run: scan failed",
		},
		{
			name:     "message and err",
			err:      &Error{Message: "scan failed", Err: fmt.Errorf("artifact unreadable")},
			expected: "scan failed: artifact unreadable",
		},
		{
			name:     "message only",
			err:      &Error{Message: "scan failed"},
			expected: "scan failed",
		},
		{
			name:     "empty error",
			err:      &Error{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("underlying error")
	err := &Error{Message: "wrapper", Err: underlying}

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}

	// Test with nil Err
	err2 := &Error{Message: "no underlying"}
	if err2.Unwrap() != nil {
		t.Errorf("Unwrap() should return nil for error without underlying")
	}
}

func TestError_Is(t *testing.T) {
	err1 := &Error{Kind: KindVerification, Message: "tests failed"}
	err2 := &Error{Kind: KindVerification, Message: "different message"}
	err3 := &Error{Kind: KindDeployment, Message: "tests failed"}

	// Same kind should match
	if !err1.Is(err2) {
		t.Error("Errors with same Kind should match")
	}

	// Different kind should not match
	if err1.Is(err3) {
		t.Error("Errors with different Kind should not match")
	}

	// Non-Error type should not match
	if err1.Is(fmt.Errorf("some error")) {
		t.Error("Should not match non-Error type")
	}
}

func TestE_Constructor(t *testing.T) {
	// Test with Kind
	err := E(KindScan)
	if e, ok := err.(*Error); ok {
		if e.Kind != KindScan {
			t.Errorf("E(Kind) should set Kind, got %v", e.Kind)
		}
	} else {
		t.Error("E() should return *Error")
	}

	// Test with string (Op first, then Message)
	err = E("scanner.Scan", "target unreadable")
	if e, ok := err.(*Error); ok {
		if e.Op != "scanner.Scan" {
			t.Errorf("E(string) should set Op first, got %q", e.Op)
		}
		if e.Message != "target unreadable" {
			t.Errorf("E(string, string) should set Message second, got %q", e.Message)
		}
	}

	// Test with error
	underlying := fmt.Errorf("underlying")
	err = E(underlying)
	if e, ok := err.(*Error); ok {
		if e.Err != underlying {
			t.Error("E(error) should set Err")
		}
	}

	// Test with multiple args
	err = E(KindDeployment, "deployer.Deploy", "apply failed", underlying)
	if e, ok := err.(*Error); ok {
		if e.Kind != KindDeployment {
			t.Errorf("Kind = %v, want KindDeployment", e.Kind)
		}
		if e.Op != "deployer.Deploy" {
			t.Errorf("Op = %q, want 'deployer.Deploy'", e.Op)
		}
		if e.Message != "apply failed" {
			t.Errorf("Message = %q, want 'apply failed'", e.Message)
		}
		if e.Err != underlying {
			t.Error("Err should be set")
		}
	}
}

func TestWrap(t *testing.T) {
	underlying := fmt.Errorf("underlying error")

	wrapped := Wrap(underlying, "store.Record")
	if e, ok := wrapped.(*Error); ok {
		if e.Op != "store.Record" {
			t.Errorf("Wrap() should set Op, got %q", e.Op)
		}
		if e.Err != underlying {
			t.Error("Wrap() should set Err")
		}
	}

	// Nil case
	if Wrap(nil, "op") != nil {
		t.Error("Wrap(nil, op) should return nil")
	}
	if WrapWithMessage(nil, "msg") != nil {
		t.Error("WrapWithMessage(nil, msg) should return nil")
	}
}

func TestGetKind(t *testing.T) {
	// From *Error
	err := &Error{Kind: KindVerification}
	if kind := GetKind(err); kind != KindVerification {
		t.Errorf("GetKind() = %v, want KindVerification", kind)
	}

	// From wrapped error
	wrapped := fmt.Errorf("wrapper: %w", err)
	if kind := GetKind(wrapped); kind != KindVerification {
		t.Errorf("GetKind() from wrapped = %v, want KindVerification", kind)
	}

	// From non-Error
	if kind := GetKind(fmt.Errorf("plain error")); kind != KindUnknown {
		t.Errorf("GetKind() from plain error = %v, want KindUnknown", kind)
	}
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred func(error) bool
		kind Kind
	}{
		{"IsScanError", IsScanError, KindScan},
		{"IsAnalysisError", IsAnalysisError, KindAnalysis},
		{"IsGenerationError", IsGenerationError, KindGeneration},
		{"IsVerificationFailure", IsVerificationFailure, KindVerification},
		{"IsDeploymentFailure", IsDeploymentFailure, KindDeployment},
		{"IsLearningConflict", IsLearningConflict, KindLearningConflict},
		{"IsNotFoundError", IsNotFoundError, KindNotFound},
		{"IsTimeoutError", IsTimeoutError, KindTimeout},
		{"IsNetworkError", IsNetworkError, KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.pred(&Error{Kind: tt.kind}) {
				t.Errorf("%s should recognize its kind", tt.name)
			}
			if tt.pred(fmt.Errorf("plain error")) {
				t.Errorf("%s should not match plain error", tt.name)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"timeout", &Error{Kind: KindTimeout}, true},
		{"network", &Error{Kind: KindNetwork}, true},
		{"learning conflict", &Error{Kind: KindLearningConflict}, true},
		{"scan error", &Error{Kind: KindScan}, false},
		{"verification failure", &Error{Kind: KindVerification}, false},
		{"deployment failure", &Error{Kind: KindDeployment}, false},
		{"invalid input", &Error{Kind: KindInvalidInput}, false},
		{"plain error", fmt.Errorf("some error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"ErrNotFound", ErrNotFound, KindNotFound},
		{"ErrTimeout", ErrTimeout, KindTimeout},
		{"ErrInvalidConfig", ErrInvalidConfig, KindInvalidInput},
		{"ErrStoreClosed", ErrStoreClosed, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("%s.Kind = %v, want %v", tt.name, tt.err.Kind, tt.kind)
			}
		})
	}
}

func TestErrorChaining(t *testing.T) {
	// Test that errors can be chained with standard library
	base := fmt.Errorf("base error")
	wrapped := &Error{Kind: KindNetwork, Message: "network failure", Err: base}

	if !errors.Is(wrapped, base) {
		t.Error("errors.Is should find base error through Unwrap")
	}

	var pipeErr *Error
	if !errors.As(wrapped, &pipeErr) {
		t.Error("errors.As should find *Error")
	}
	if pipeErr.Kind != KindNetwork {
		t.Error("errors.As should return the correct error")
	}
}
