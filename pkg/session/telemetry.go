package session

import "time"

// DefaultZoomLevel is the zoom percentage before any zoom command or
// confirmation arrives. Zoom is unbounded in both directions.
const DefaultZoomLevel = 100.0

// Telemetry is the most recent snapshot of simulated-world statistics.
// Pushes may be partial: absent fields keep their previous value.
type Telemetry struct {
	// SimulatedTime is seconds elapsed inside the simulation model,
	// distinct from wall-clock time.
	SimulatedTime float64 `json:"simulatedTime"`
	// RunningVehicles is the count of vehicles currently active.
	RunningVehicles int     `json:"runningVehicles"`
	AverageSpeed    float64 `json:"averageSpeed"`
	Throughput      float64 `json:"throughput"`
	CO2             float64 `json:"co2"`
	NOx             float64 `json:"nox"`
	Fuel            float64 `json:"fuel"`
	ZoomLevel       float64 `json:"zoomLevel"`
}

// NewTelemetry returns a zero snapshot with the default zoom level.
func NewTelemetry() Telemetry {
	return Telemetry{ZoomLevel: DefaultZoomLevel}
}

// RealTimeClock tracks wall-clock time for the current running episode,
// independent of simulated time. It is started on the transition into
// running and reset on stop or completion. It deliberately keeps counting
// across pause/resume: it measures the total wall-clock duration of the
// episode, not time spent unpaused.
type RealTimeClock struct {
	StartTime       time.Time     `json:"startTime"`
	ElapsedRealTime time.Duration `json:"elapsedRealTime"`
}

// Start begins a new episode at now.
func (c *RealTimeClock) Start(now time.Time) {
	c.StartTime = now
	c.ElapsedRealTime = 0
}

// Tick recomputes the elapsed duration. A tick before Start is a no-op.
func (c *RealTimeClock) Tick(now time.Time) {
	if c.StartTime.IsZero() {
		return
	}
	c.ElapsedRealTime = now.Sub(c.StartTime)
}

// Reset clears both fields.
func (c *RealTimeClock) Reset() {
	c.StartTime = time.Time{}
	c.ElapsedRealTime = 0
}

// Running reports whether the clock has been started.
func (c *RealTimeClock) Running() bool {
	return !c.StartTime.IsZero()
}
