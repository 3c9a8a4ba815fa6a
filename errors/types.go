package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Backend command errors
	ErrCodeLaunchRejected     ErrorCode = "LAUNCH_REJECTED"
	ErrCodeCommandRejected    ErrorCode = "COMMAND_REJECTED"
	ErrCodeCommandTimeout     ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeBackendUnreachable ErrorCode = "BACKEND_UNREACHABLE"

	// Session lifecycle errors
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeNoProcessHandle   ErrorCode = "NO_PROCESS_HANDLE"
	ErrCodeStaleResponse     ErrorCode = "STALE_RESPONSE"
	ErrCodeSessionNotSaved   ErrorCode = "SESSION_NOT_SAVED"

	// Telemetry errors
	ErrCodeZoomBusy     ErrorCode = "ZOOM_BUSY"
	ErrCodeBadTelemetry ErrorCode = "BAD_TELEMETRY"
	ErrCodeStreamClosed ErrorCode = "STREAM_CLOSED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// FlowdeckError represents a structured error with context
type FlowdeckError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *FlowdeckError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *FlowdeckError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *FlowdeckError) WithDetail(key string, value interface{}) *FlowdeckError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *FlowdeckError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new FlowdeckError
func New(code ErrorCode, message string) *FlowdeckError {
	return &FlowdeckError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a FlowdeckError
func Wrap(err error, code ErrorCode, message string) *FlowdeckError {
	return &FlowdeckError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific FlowdeckError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	fdErr, ok := err.(*FlowdeckError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return fdErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	fdErr, ok := err.(*FlowdeckError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return fdErr.Code
}
