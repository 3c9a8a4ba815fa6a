package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/flowdeck/core/errors"
)

// Push-channel event names, matching the backend contract.
const (
	eventSimulationStats  = "simulation_stats"
	eventSimulationData   = "simulation_data"
	eventSimulationStatus = "simulation_status"
	eventSessionCompleted = "session_completed"
	eventZoomChanged      = "zoom_changed"
	eventViewCentered     = "view_centered"
	eventConnectionStatus = "connection_status"
)

// Event is one push-channel event. Consumers type-switch on the concrete
// types below; events are delivered in arrival order with no buffering
// beyond the channel itself.
type Event interface {
	eventName() string
}

// StatsEvent carries a telemetry payload in one of the three historical
// shapes. The raw map is kept as-is; shape detection and field mapping
// belong to the telemetry synchronizer.
type StatsEvent struct {
	Raw map[string]interface{}
}

func (StatsEvent) eventName() string { return eventSimulationStats }

// StatusEvent is a backend-pushed lifecycle status change. Either Status or
// State carries the new state; Error, when present, is surfaced to the user
// independent of the transition.
type StatusEvent struct {
	Status      string     `mapstructure:"status"`
	State       string     `mapstructure:"state"`
	Message     string     `mapstructure:"message"`
	Error       string     `mapstructure:"error"`
	Reason      string     `mapstructure:"reason"`
	CompletedAt *time.Time `mapstructure:"completed_at"`
}

func (StatusEvent) eventName() string { return eventSimulationStatus }

// EffectiveState returns Status, falling back to State.
func (e StatusEvent) EffectiveState() string {
	if e.Status != "" {
		return e.Status
	}
	return e.State
}

// SessionCompletedEvent is the distinct completion signal.
type SessionCompletedEvent struct {
	Reason      string     `mapstructure:"reason"`
	CanAnalyze  bool       `mapstructure:"can_analyze"`
	CompletedAt *time.Time `mapstructure:"completed_at"`
}

func (SessionCompletedEvent) eventName() string { return eventSessionCompleted }

// ZoomChangedEvent reports a zoom change driven from outside this client,
// e.g. directly in the simulation engine's own viewer.
type ZoomChangedEvent struct {
	ProcessID int     `mapstructure:"processId"`
	ZoomLevel float64 `mapstructure:"zoomLevel"`
}

func (ZoomChangedEvent) eventName() string { return eventZoomChanged }

// ViewCenteredEvent reports a view recenter; the zoom level is optional.
type ViewCenteredEvent struct {
	ProcessID int      `mapstructure:"processId"`
	ZoomLevel *float64 `mapstructure:"zoomLevel"`
}

func (ViewCenteredEvent) eventName() string { return eventViewCentered }

// ConnState describes the push channel's transport state, tracked
// independently of the simulation lifecycle.
type ConnState string

const (
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
	ConnError        ConnState = "error"
)

// ConnectionEvent reports a change in push-channel connectivity. Most are
// synthesized locally by the stream reader; backends may also push them.
type ConnectionEvent struct {
	State  ConnState `mapstructure:"state"`
	Detail string    `mapstructure:"detail"`
}

func (ConnectionEvent) eventName() string { return eventConnectionStatus }

// frame is the wire envelope of every push message.
type frame struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

// decodeFrame turns a raw wire message into a typed Event. Unknown event
// names return (nil, nil): new backend events must not break old clients.
func decodeFrame(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.BadTelemetry("malformed push frame", err)
	}

	switch f.Event {
	case eventSimulationStats, eventSimulationData:
		return StatsEvent{Raw: f.Payload}, nil
	case eventSimulationStatus:
		var ev StatusEvent
		if err := decodePayload(f.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventSessionCompleted:
		var ev SessionCompletedEvent
		if err := decodePayload(f.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventZoomChanged:
		var ev ZoomChangedEvent
		if err := decodePayload(f.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventViewCentered:
		var ev ViewCenteredEvent
		if err := decodePayload(f.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventConnectionStatus:
		var ev ConnectionEvent
		if err := decodePayload(f.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, nil
	}
}

// decodePayload maps a generic payload into a typed event struct,
// converting RFC 3339 strings into time values along the way.
func decodePayload(payload map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create event decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return errors.BadTelemetry("undecodable event payload", err)
	}
	return nil
}
