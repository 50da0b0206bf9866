package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("WSN-TEST-1000", "test message"),
			expected: "[WSN-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("WSN-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[WSN-TEST-1001] test message: extra info",
		},
		{
			name:     "error with details and cause",
			err:      NewDomainError("WSN-TEST-1002", "test message").WithDetails("frame 3").Wrap(io.ErrUnexpectedEOF),
			expected: "[WSN-TEST-1002] test message: frame 3: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("WSN-TEST-1000", "message 1")
	err2 := NewDomainError("WSN-TEST-1000", "message 2") // Same code, different message
	err3 := NewDomainError("WSN-TEST-1001", "message 1") // Different code

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("load snapshot 7: %w", ErrFormatCorruption.WithDetails("pc").Wrap(io.EOF))

	if !errors.Is(err, ErrFormatCorruption) {
		t.Error("wrapped copy should match its sentinel")
	}
	if !errors.Is(err, io.EOF) {
		t.Error("cause should stay reachable")
	}
	if errors.Is(err, ErrIOFailure) {
		t.Error("format corruption must not match io failure")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := NewDomainError("WSN-TEST-1000", "wrapper").WithCause(cause)

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}

	errNoCause := NewDomainError("WSN-TEST-1000", "no cause")
	if errors.Unwrap(errNoCause) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_WithDetails(t *testing.T) {
	original := NewDomainError("WSN-TEST-1000", "original message")
	withDetails := original.WithDetailsf("frame %d", 4)

	if original.Details != "" {
		t.Error("WithDetails should not modify original error")
	}
	if withDetails.Details != "frame 4" {
		t.Errorf("Details = %q, want %q", withDetails.Details, "frame 4")
	}
	if withDetails.Code != original.Code {
		t.Errorf("Code = %q, want %q", withDetails.Code, original.Code)
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrModuleMismatch, "WSN-MOD-4091"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrIOFailure), "WSN-IO-5001"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrInvalidMode, "") {
		t.Error("IsDomainError with empty code should accept any DomainError")
	}
	if IsDomainError(io.EOF, "") {
		t.Error("IsDomainError should reject plain errors")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{ErrIOFailure, "WSN-IO-5001"},
		{ErrSnapshotNotFound, "WSN-IO-4041"},
		{ErrFormatCorruption, "WSN-FMT-4221"},
		{ErrModuleMismatch, "WSN-MOD-4091"},
		{ErrInvalidMode, "WSN-STATE-4001"},
		{ErrSessionOpen, "WSN-STATE-4002"},
		{ErrInvalidConfig, "WSN-CFG-1001"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}
