// Package session holds the shared record for one simulation run: its
// lifecycle state, backend process handle, latest telemetry snapshot, and
// wall-clock tracking. The lifecycle controller and telemetry synchronizer
// both operate on this record; every mutation goes through a method that
// holds the record's lock, and every state change is a compare-and-set so a
// stale command response can never clobber a newer state.
package session

// State is the lifecycle state of a simulation run.
type State string

const (
	StateReady     State = "ready"
	StateLaunching State = "launching"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateFinished  State = "finished"
	StateError     State = "error"
)

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateReady, StateLaunching, StateRunning, StatePaused,
		StateStopped, StateFinished, StateError:
		return true
	}
	return false
}

// Launchable reports whether a new process episode may be started from s.
func (s State) Launchable() bool {
	return s == StateReady || s == StateStopped || s == StateError
}

// Active reports whether a process handle is expected to exist in s.
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused
}

// transitions is the legality table for lifecycle moves. A transition not
// listed here is rejected. Finish is handled separately: completion events
// force `finished` from any non-terminal state.
var transitions = map[State][]State{
	StateReady:     {StateLaunching},
	StateLaunching: {StateRunning, StateError},
	StateRunning:   {StatePaused, StateStopped, StateFinished, StateError},
	StatePaused:    {StateRunning, StateStopped, StateFinished, StateError},
	StateStopped:   {StateLaunching},
	StateError:     {StateLaunching},
	StateFinished:  {},
}

// CanTransitionTo reports whether the move from s to next is legal.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
