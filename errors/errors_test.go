package errors

import (
	"fmt"
	"testing"
)

func TestFlowdeckError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeNoProcessHandle, "no active process")
	if err.Code != ErrCodeNoProcessHandle {
		t.Errorf("expected code %s, got %s", ErrCodeNoProcessHandle, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeBackendUnreachable, "failed to pause")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeBackendUnreachable) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeNoProcessHandle) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("action", "pause").WithDetail("processId", 42)
	if detailed.Details["action"] != "pause" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	// Test LaunchRejected keeps the backend message verbatim
	err := LaunchRejected("s1", "port busy")
	if err.Code != ErrCodeLaunchRejected {
		t.Errorf("expected code %s, got %s", ErrCodeLaunchRejected, err.Code)
	}
	if err.Message != "port busy" {
		t.Errorf("expected backend message preserved, got %q", err.Message)
	}
	if err.Details["sessionId"] != "s1" {
		t.Error("LaunchRejected should include sessionId detail")
	}

	// Test LaunchRejected falls back to a generic message
	err = LaunchRejected("s1", "")
	if err.Message == "" {
		t.Error("LaunchRejected should provide a generic message")
	}

	// Test InvalidTransition
	err = InvalidTransition("ready", "pause")
	if err.Code != ErrCodeInvalidTransition {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidTransition, err.Code)
	}
	if err.Details["state"] != "ready" {
		t.Error("InvalidTransition should include state detail")
	}

	// Test ZoomBusy
	err = ZoomBusy("s1")
	if err.Code != ErrCodeZoomBusy {
		t.Errorf("expected code %s, got %s", ErrCodeZoomBusy, err.Code)
	}
}
