package session

import (
	"sync"
	"time"

	"github.com/flowdeck/core/errors"
)

// ProcessHandle identifies a backend-managed simulation process.
type ProcessHandle struct {
	ProcessID int `json:"processId"`
	Port      int `json:"port"`
}

// Session is one simulation run's identity, lifecycle state, and live view
// model. All fields behind the mutex; read access goes through Snapshot or
// the individual getters.
type Session struct {
	mu sync.Mutex

	id          string
	path        string
	networkName string

	state       State
	handle      *ProcessHandle
	canAnalyze  bool
	createdAt   time.Time
	completedAt *time.Time
	savedAt     *time.Time

	completionReason string
	lastError        string

	telemetry Telemetry
	clock     RealTimeClock
}

// New creates a session in the ready state.
func New(id, path, networkName string) *Session {
	return &Session{
		id:          id,
		path:        path,
		networkName: networkName,
		state:       StateReady,
		createdAt:   time.Now(),
		telemetry:   NewTelemetry(),
	}
}

// ID returns the immutable session identifier.
func (s *Session) ID() string { return s.id }

// Path returns the session's storage location.
func (s *Session) Path() string { return s.path }

// NetworkName returns the road-network name the session was configured with.
func (s *Session) NetworkName() string { return s.networkName }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns the current process handle, or nil if no process is active.
func (s *Session) Handle() *ProcessHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	h := *s.handle
	return &h
}

// CanAnalyze reports whether the run's results are ready for analysis.
func (s *Session) CanAnalyze() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAnalyze
}

// LastError returns the most recent user-visible error message.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// SetLastError records the single most-recent error message for the session.
func (s *Session) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// ClearError clears the error message. Every new user action clears the
// prior error before attempting.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

// BeginLaunch moves the session into launching. Valid only from ready,
// stopped, or error. The prior error message and completion fields are
// cleared; the handle is not assigned until the launch call resolves.
func (s *Session) BeginLaunch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Launchable() {
		return errors.InvalidTransition(string(s.state), "launch")
	}
	s.state = StateLaunching
	s.handle = nil
	s.lastError = ""
	s.completionReason = ""
	s.completedAt = nil
	return nil
}

// CompleteLaunch attaches the process handle, enters running, and starts
// the real-time clock. Rejected if a concurrent event already moved the
// session out of launching.
func (s *Session) CompleteLaunch(h ProcessHandle, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLaunching {
		return errors.StaleResponse("launch", string(StateLaunching), string(s.state))
	}
	s.state = StateRunning
	s.handle = &h
	s.clock.Start(now)
	return nil
}

// FailLaunch moves launching to error with the given message.
func (s *Session) FailLaunch(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLaunching {
		return errors.StaleResponse("launch", string(StateLaunching), string(s.state))
	}
	s.state = StateError
	s.handle = nil
	s.lastError = msg
	return nil
}

// MarkPaused confirms a pause: running -> paused. The clock keeps counting.
func (s *Session) MarkPaused() error {
	return s.compareAndSwap("pause", StateRunning, StatePaused)
}

// MarkResumed confirms a resume: paused -> running.
func (s *Session) MarkResumed() error {
	return s.compareAndSwap("resume", StatePaused, StateRunning)
}

// MarkStopped confirms a stop: running or paused -> stopped. The handle is
// cleared and the clock reset; a new handle is required to launch again.
func (s *Session) MarkStopped() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() {
		return errors.StaleResponse("stop", "running|paused", string(s.state))
	}
	s.state = StateStopped
	s.handle = nil
	s.clock.Reset()
	return nil
}

// Finish forces the session into finished: completion events from the
// backend win over whatever the client believes. The handle is cleared and
// the clock reset; canAnalyze is left alone (see SetCanAnalyze). Finishing
// an already finished session is a no-op.
func (s *Session) Finish(reason string, completedAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFinished {
		return
	}
	s.state = StateFinished
	s.handle = nil
	s.clock.Reset()
	s.completionReason = reason
	if completedAt != nil {
		t := *completedAt
		s.completedAt = &t
	} else {
		now := time.Now()
		s.completedAt = &now
	}
}

// SetCanAnalyze records whether the run's results are analyzable. Driven
// by the backend's session_completed payload or a successful save.
func (s *Session) SetCanAnalyze(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canAnalyze = v
}

// AdoptState applies a backend-pushed state verbatim, subject to the
// transition table. Illegal or unknown states are rejected.
func (s *Session) AdoptState(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !next.Valid() {
		return errors.New(errors.ErrCodeInvalidInput, "unknown state pushed by backend").
			WithDetail("state", string(next))
	}
	if s.state == next {
		return nil
	}
	if !s.state.CanTransitionTo(next) {
		return errors.InvalidTransition(string(s.state), "adopt "+string(next))
	}
	s.state = next
	return nil
}

// MarkSaved records a successful explicit save. Valid once finished.
func (s *Session) MarkSaved(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFinished {
		return errors.InvalidTransition(string(s.state), "save")
	}
	s.canAnalyze = true
	t := now
	s.savedAt = &t
	return nil
}

func (s *Session) compareAndSwap(action string, from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return errors.StaleResponse(action, string(from), string(s.state))
	}
	s.state = to
	return nil
}

// UpdateTelemetry applies fn to the telemetry snapshot under the lock.
// fn sees the prior snapshot so partial updates preserve absent fields.
func (s *Session) UpdateTelemetry(fn func(*Telemetry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.telemetry)
}

// Telemetry returns a copy of the latest snapshot.
func (s *Session) Telemetry() Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry
}

// Zoom returns the current zoom level.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.ZoomLevel
}

// SetZoom applies a confirmed or reconciled zoom level. The most recently
// applied value wins; callers serialize via single-flight, not here.
func (s *Session) SetZoom(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry.ZoomLevel = level
}

// TickClock recomputes elapsed real time. Only meaningful while running;
// the synchronizer stops calling it when the state leaves running.
func (s *Session) TickClock(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Tick(now)
}

// Clock returns a copy of the real-time clock.
func (s *Session) Clock() RealTimeClock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Snapshot is a point-in-time serializable view of the session for the UI.
type Snapshot struct {
	SessionID        string         `json:"sessionId"`
	SessionPath      string         `json:"sessionPath"`
	NetworkName      string         `json:"networkName"`
	State            State          `json:"state"`
	ProcessHandle    *ProcessHandle `json:"processHandle,omitempty"`
	CanAnalyze       bool           `json:"canAnalyze"`
	CreatedAt        time.Time      `json:"createdAt"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	SavedAt          *time.Time     `json:"savedAt,omitempty"`
	CompletionReason string         `json:"completionReason,omitempty"`
	LastError        string         `json:"lastError,omitempty"`
	Telemetry        Telemetry      `json:"telemetry"`
	ElapsedRealTime  time.Duration  `json:"elapsedRealTime"`
}

// Snapshot returns a consistent copy of the whole record.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:        s.id,
		SessionPath:      s.path,
		NetworkName:      s.networkName,
		State:            s.state,
		CanAnalyze:       s.canAnalyze,
		CreatedAt:        s.createdAt,
		CompletionReason: s.completionReason,
		LastError:        s.lastError,
		Telemetry:        s.telemetry,
		ElapsedRealTime:  s.clock.ElapsedRealTime,
	}
	if s.handle != nil {
		h := *s.handle
		snap.ProcessHandle = &h
	}
	if s.completedAt != nil {
		t := *s.completedAt
		snap.CompletedAt = &t
	}
	if s.savedAt != nil {
		t := *s.savedAt
		snap.SavedAt = &t
	}
	return snap
}
