package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *FlowdeckError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *FlowdeckError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// LaunchRejected creates an error for a launch the backend refused.
// The backend message is preserved verbatim so the UI can show it as-is.
func LaunchRejected(sessionID, message string) *FlowdeckError {
	if message == "" {
		message = "failed to launch simulation"
	}
	return New(ErrCodeLaunchRejected, message).
		WithDetail("sessionId", sessionID)
}

// CommandRejected creates an error for a non-launch command the backend refused
func CommandRejected(action, message string) *FlowdeckError {
	if message == "" {
		message = fmt.Sprintf("failed to %s simulation", action)
	}
	return New(ErrCodeCommandRejected, message).
		WithDetail("action", action)
}

// CommandTimeout creates an error for a backend call that exceeded its deadline
func CommandTimeout(action string, timeout string) *FlowdeckError {
	return New(ErrCodeCommandTimeout,
		fmt.Sprintf("%s did not complete within %s", action, timeout)).
		WithDetail("action", action).
		WithDetail("timeout", timeout)
}

// BackendUnreachable creates a transport-level failure error
func BackendUnreachable(action string, err error) *FlowdeckError {
	return Wrap(err, ErrCodeBackendUnreachable, fmt.Sprintf("failed to %s", action)).
		WithDetail("action", action)
}

// InvalidTransition creates an error for a command issued in the wrong state
func InvalidTransition(from, action string) *FlowdeckError {
	return New(ErrCodeInvalidTransition,
		fmt.Sprintf("cannot %s while %s", action, from)).
		WithDetail("state", from).
		WithDetail("action", action)
}

// NoProcessHandle creates an error for a command that needs a running process
func NoProcessHandle(action string) *FlowdeckError {
	return New(ErrCodeNoProcessHandle,
		fmt.Sprintf("cannot %s: no active simulation process", action)).
		WithDetail("action", action)
}

// StaleResponse creates an error for a command response that no longer
// matches the session's current state or handle.
func StaleResponse(action, expected, actual string) *FlowdeckError {
	return New(ErrCodeStaleResponse,
		fmt.Sprintf("discarding stale %s response: expected state %s, now %s", action, expected, actual)).
		WithDetail("action", action).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// ZoomBusy creates an error for a zoom request rejected by single-flight
func ZoomBusy(sessionID string) *FlowdeckError {
	return New(ErrCodeZoomBusy, "a zoom request is already in flight").
		WithDetail("sessionId", sessionID)
}

// BadTelemetry creates an error for an undecodable telemetry payload
func BadTelemetry(reason string, err error) *FlowdeckError {
	return Wrap(err, ErrCodeBadTelemetry, fmt.Sprintf("bad telemetry payload: %s", reason))
}
