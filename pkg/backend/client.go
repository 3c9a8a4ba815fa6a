// Package backend provides the client side of the simulation backend
// contract: a REST client for imperative commands (launch, pause, resume,
// stop, zoom, save) and a push-channel subscriber that delivers telemetry
// and status events over a persistent WebSocket.
package backend

import (
	"context"
	"time"

	"github.com/flowdeck/core/pkg/session"
)

// SimulationConfig is the opaque configuration payload assembled by the
// dashboard's parameter forms. The backend interprets it; this client only
// forwards it.
type SimulationConfig map[string]interface{}

// LaunchRequest is the body of POST /api/simulation/launch.
type LaunchRequest struct {
	SessionID      string           `json:"sessionId"`
	SessionPath    string           `json:"sessionPath"`
	Config         SimulationConfig `json:"config"`
	EnableGui      bool             `json:"enableGui"`
	EnableLiveData bool             `json:"enableLiveData"`
}

// launchResponse mirrors the backend's launch reply.
type launchResponse struct {
	Success bool                   `json:"success"`
	Process *session.ProcessHandle `json:"process,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// commandResponse mirrors the backend's reply for pause/resume/stop/save.
type commandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// zoomResponse mirrors GET /api/simulation/zoom/{processId}.
type zoomResponse struct {
	Success   bool    `json:"success"`
	ZoomLevel float64 `json:"zoomLevel"`
	Message   string  `json:"message,omitempty"`
}

// SaveRequest is the body of POST /api/simulation/save-session.
type SaveRequest struct {
	SessionID   string `json:"sessionId"`
	SessionPath string `json:"sessionPath"`
	Force       bool   `json:"force"`
}

// Client is the command interface to the simulation backend. Commands are
// fire-and-report: a rejection or transport failure is returned as an error
// and the caller decides whether to re-attempt.
type Client interface {
	// Launch starts a simulation process and returns its handle.
	// A backend rejection is returned as ErrCodeLaunchRejected carrying
	// the backend's message verbatim.
	Launch(ctx context.Context, req LaunchRequest) (session.ProcessHandle, error)

	// Pause suspends the simulation process.
	Pause(ctx context.Context, processID int) error

	// Resume continues a paused simulation process.
	Resume(ctx context.Context, processID int) error

	// Stop terminates the simulation process.
	Stop(ctx context.Context, processID int) error

	// GetZoom fetches the authoritative zoom level from the backend.
	GetZoom(ctx context.Context, processID int) (float64, error)

	// SetZoom pushes a new absolute zoom level to the backend.
	SetZoom(ctx context.Context, processID int, level float64) error

	// SaveSession persists the session's results on the backend.
	SaveSession(ctx context.Context, req SaveRequest) error

	// Subscribe opens the push channel. Events arrive on the returned
	// channel in arrival order until the context is cancelled.
	Subscribe(ctx context.Context) (<-chan Event, error)

	// Close releases client resources.
	Close() error
}

// Options tunes the HTTP client.
type Options struct {
	// CommandTimeout bounds each REST round trip. Zero means DefaultTimeout.
	CommandTimeout time.Duration
	// StreamURL overrides the derived WebSocket URL.
	StreamURL string
}

// DefaultTimeout is applied when Options.CommandTimeout is zero. The
// backend contract has no heartbeat; without a deadline a hung request
// would leave the UI pending forever.
const DefaultTimeout = 15 * time.Second
