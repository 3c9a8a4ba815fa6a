package cli

import (
	"fmt"
	"os"

	"github.com/flowdeck/core/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(os.Stderr, "❌ Configuration not found. Create a flowdeck.yml in your project directory.\n")
		return err

	case errors.ErrCodeBackendUnreachable:
		fmt.Fprintf(os.Stderr, "❌ Cannot reach the simulation backend.\n")
		fmt.Fprintf(os.Stderr, "Check that the backend is running and backend.base_url in flowdeck.yml is correct.\n")
		return err

	case errors.ErrCodeCommandTimeout:
		if fdErr, ok := err.(*errors.FlowdeckError); ok {
			fmt.Fprintf(os.Stderr, "❌ The backend did not respond within %v\n", fdErr.Details["timeout"])
		} else {
			fmt.Fprintf(os.Stderr, "❌ The backend did not respond in time\n")
		}
		fmt.Fprintf(os.Stderr, "The simulation may still be starting; try again in a moment.\n")
		return err

	case errors.ErrCodeLaunchRejected:
		if fdErr, ok := err.(*errors.FlowdeckError); ok {
			fmt.Fprintf(os.Stderr, "❌ Launch rejected: %s\n", fdErr.Message)
		}
		return err

	case errors.ErrCodeZoomBusy:
		fmt.Fprintf(os.Stderr, "❌ A zoom change is already in progress\n")
		return err

	case errors.ErrCodeInvalidTransition:
		if fdErr, ok := err.(*errors.FlowdeckError); ok {
			fmt.Fprintf(os.Stderr, "❌ %s\n", fdErr.Message)
		}
		return err

	default:
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)

		// If verbose mode, show full error details
		if h.Verbose {
			if fdErr, ok := err.(*errors.FlowdeckError); ok {
				fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", fdErr.ToJSON())
			}
		}
		return err
	}
}
