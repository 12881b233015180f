package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(CodeRemote, "trigger rejected")
	if got := err.Error(); !strings.Contains(got, "[remote]") || !strings.Contains(got, "trigger rejected") {
		t.Errorf("unexpected error string: %q", got)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, CodeTransient, "read failed")

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "caused by: connection reset") {
		t.Errorf("cause missing from message: %q", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(CodeConfig, "bad yaml"), CodeConfig, true},
		{"different code", New(CodeConfig, "bad yaml"), CodeRemote, false},
		{"plain error", fmt.Errorf("plain"), CodeConfig, false},
		{"nested in fmt wrapper", fmt.Errorf("connect: %w", New(CodeRemote, "rejected")), CodeRemote, true},
		{"nested AppError", Wrap(New(CodeRemote, "rejected"), CodeTransient, "outer"), CodeTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeTransient, "hiccup")) {
		t.Error("transient errors should be retryable")
	}
	if IsRetryable(New(CodeRemote, "unknown hotkey")) {
		t.Error("remote protocol errors should not be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors should not be retryable")
	}
	if !IsRetryable(fmt.Errorf("dial: %w", New(CodeTransient, "refused"))) {
		t.Error("wrapped transient errors should be retryable")
	}
}

func TestWithMetadata(t *testing.T) {
	err := Newf(CodeExhausted, "buffer over %ds cap", 30).WithMetadata("dropped_chunks", "12")
	if err.Metadata["dropped_chunks"] != "12" {
		t.Error("metadata not stored")
	}
	if !strings.Contains(err.Error(), "dropped_chunks") {
		t.Errorf("metadata missing from message: %q", err.Error())
	}
}
