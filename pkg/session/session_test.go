package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/core/errors"
)

func TestStateTable(t *testing.T) {
	testCases := []struct {
		from  State
		to    State
		legal bool
	}{
		{StateReady, StateLaunching, true},
		{StateLaunching, StateRunning, true},
		{StateLaunching, StateError, true},
		{StateRunning, StatePaused, true},
		{StatePaused, StateRunning, true},
		{StateRunning, StateStopped, true},
		{StatePaused, StateStopped, true},
		{StateStopped, StateLaunching, true},
		{StateError, StateLaunching, true},
		{StateReady, StatePaused, false},
		{StateReady, StateRunning, false},
		{StatePaused, StateLaunching, false},
		{StateFinished, StateLaunching, false},
		{StateStopped, StateRunning, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.legal, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestLaunchEpisode(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	assert.Equal(t, StateReady, s.State())
	assert.Nil(t, s.Handle())

	require.NoError(t, s.BeginLaunch())
	assert.Equal(t, StateLaunching, s.State())
	// launching is a handle-less state
	assert.Nil(t, s.Handle())

	now := time.Now()
	require.NoError(t, s.CompleteLaunch(ProcessHandle{ProcessID: 42, Port: 9001}, now))
	assert.Equal(t, StateRunning, s.State())
	require.NotNil(t, s.Handle())
	assert.Equal(t, 42, s.Handle().ProcessID)
	assert.Equal(t, now, s.Clock().StartTime)
	assert.Equal(t, time.Duration(0), s.Clock().ElapsedRealTime)
}

func TestLaunchOnlyFromLaunchableStates(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	require.NoError(t, s.BeginLaunch())
	require.NoError(t, s.CompleteLaunch(ProcessHandle{ProcessID: 1}, time.Now()))

	err := s.BeginLaunch()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestFailedLaunch(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	require.NoError(t, s.BeginLaunch())
	require.NoError(t, s.FailLaunch("port busy"))

	assert.Equal(t, StateError, s.State())
	assert.Equal(t, "port busy", s.LastError())
	assert.Nil(t, s.Handle())

	// error is recoverable via a fresh launch, which clears the message
	require.NoError(t, s.BeginLaunch())
	assert.Empty(t, s.LastError())
}

func TestStaleResponsesRejected(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	require.NoError(t, s.BeginLaunch())
	require.NoError(t, s.CompleteLaunch(ProcessHandle{ProcessID: 1}, time.Now()))
	require.NoError(t, s.MarkStopped())

	// A pause confirmation arriving after the stop must not revert state.
	err := s.MarkPaused()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeStaleResponse))
	assert.Equal(t, StateStopped, s.State())

	// Same for a late launch resolution.
	err = s.CompleteLaunch(ProcessHandle{ProcessID: 2}, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeStaleResponse))
	assert.Nil(t, s.Handle())
}

func TestPauseResumeKeepsClock(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	require.NoError(t, s.BeginLaunch())
	start := time.Now()
	require.NoError(t, s.CompleteLaunch(ProcessHandle{ProcessID: 1}, start))

	s.TickClock(start.Add(2 * time.Second))
	require.NoError(t, s.MarkPaused())
	require.NoError(t, s.MarkResumed())

	// the clock is not reset across a pause/resume pair
	assert.Equal(t, start, s.Clock().StartTime)
	assert.Equal(t, 2*time.Second, s.Clock().ElapsedRealTime)
}

func TestFinishClearsHandleAndClock(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	require.NoError(t, s.BeginLaunch())
	require.NoError(t, s.CompleteLaunch(ProcessHandle{ProcessID: 1}, time.Now()))
	s.TickClock(time.Now().Add(time.Second))

	s.Finish("end_time_reached", nil)
	s.SetCanAnalyze(true)

	assert.Equal(t, StateFinished, s.State())
	assert.Nil(t, s.Handle())
	assert.True(t, s.CanAnalyze())
	assert.Equal(t, time.Duration(0), s.Clock().ElapsedRealTime)
	clk := s.Clock()
	assert.False(t, clk.Running())

	snap := s.Snapshot()
	assert.Equal(t, "end_time_reached", snap.CompletionReason)
	require.NotNil(t, snap.CompletedAt)
}

func TestFinishIsIdempotent(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	require.NoError(t, s.BeginLaunch())
	require.NoError(t, s.CompleteLaunch(ProcessHandle{ProcessID: 1}, time.Now()))

	s.Finish("stopped", nil)
	s.SetCanAnalyze(true)
	s.Finish("stopped-again", nil)

	snap := s.Snapshot()
	assert.Equal(t, "stopped", snap.CompletionReason)
	assert.True(t, snap.CanAnalyze)
}

func TestSaveRequiresFinished(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	err := s.MarkSaved(time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	require.NoError(t, s.BeginLaunch())
	require.NoError(t, s.CompleteLaunch(ProcessHandle{ProcessID: 1}, time.Now()))
	s.Finish("end_time_reached", nil)

	require.NoError(t, s.MarkSaved(time.Now()))
	assert.True(t, s.CanAnalyze())
	require.NotNil(t, s.Snapshot().SavedAt)
}

func TestAdoptState(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	require.NoError(t, s.BeginLaunch())
	require.NoError(t, s.CompleteLaunch(ProcessHandle{ProcessID: 1}, time.Now()))

	// backend says paused: adopt it
	require.NoError(t, s.AdoptState(StatePaused))
	assert.Equal(t, StatePaused, s.State())

	// adopting the current state is a no-op
	require.NoError(t, s.AdoptState(StatePaused))

	// an unknown state is rejected
	err := s.AdoptState(State("exploded"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	// an illegal move is rejected
	err = s.AdoptState(StateLaunching)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestTelemetryDefaults(t *testing.T) {
	s := New("s1", "/runs/s1", "downtown")
	assert.Equal(t, DefaultZoomLevel, s.Zoom())
}

func TestClockMonotonicTicks(t *testing.T) {
	var c RealTimeClock
	c.Tick(time.Now()) // before Start: no-op
	assert.False(t, c.Running())

	start := time.Now()
	c.Start(start)
	prev := c.ElapsedRealTime
	for i := 1; i <= 5; i++ {
		c.Tick(start.Add(time.Duration(i) * time.Second))
		assert.GreaterOrEqual(t, c.ElapsedRealTime, prev)
		prev = c.ElapsedRealTime
	}
	assert.Equal(t, 5*time.Second, c.ElapsedRealTime)
}
