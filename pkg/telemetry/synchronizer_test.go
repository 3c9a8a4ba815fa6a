package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/core/errors"
	"github.com/flowdeck/core/pkg/backend"
	"github.com/flowdeck/core/pkg/session"
)

// fakeZoomClient implements backend.Client with scripted zoom behavior.
// setGate, when non-nil, blocks SetZoom until closed so tests can hold a
// request in flight.
type fakeZoomClient struct {
	mu         sync.Mutex
	zoomLevel  float64
	getErr     error
	setErr     error
	setCalls   []float64
	getCalls   int
	setGate    chan struct{}
	setEntered chan struct{}
}

func (f *fakeZoomClient) Launch(ctx context.Context, req backend.LaunchRequest) (session.ProcessHandle, error) {
	return session.ProcessHandle{}, nil
}

func (f *fakeZoomClient) Pause(ctx context.Context, processID int) error  { return nil }
func (f *fakeZoomClient) Resume(ctx context.Context, processID int) error { return nil }
func (f *fakeZoomClient) Stop(ctx context.Context, processID int) error   { return nil }

func (f *fakeZoomClient) GetZoom(ctx context.Context, processID int) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.zoomLevel, nil
}

func (f *fakeZoomClient) SetZoom(ctx context.Context, processID int, level float64) error {
	f.mu.Lock()
	gate := f.setGate
	entered := f.setEntered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.setCalls = append(f.setCalls, level)
	f.zoomLevel = level
	return nil
}

func (f *fakeZoomClient) SaveSession(ctx context.Context, req backend.SaveRequest) error { return nil }

func (f *fakeZoomClient) Subscribe(ctx context.Context) (<-chan backend.Event, error) {
	ch := make(chan backend.Event)
	close(ch)
	return ch, nil
}

func (f *fakeZoomClient) Close() error { return nil }

func (f *fakeZoomClient) zoomCalls() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.setCalls))
	copy(out, f.setCalls)
	return out
}

func runningSession(t *testing.T) *session.Session {
	t.Helper()
	sess := session.New("s1", "/runs/s1", "downtown")
	require.NoError(t, sess.BeginLaunch())
	require.NoError(t, sess.CompleteLaunch(session.ProcessHandle{ProcessID: 4242, Port: 9100}, time.Now()))
	return sess
}

func TestRequestZoomStepsByFixedFactor(t *testing.T) {
	client := &fakeZoomClient{}
	sess := runningSession(t)
	s := NewSynchronizer(client, sess, Options{})

	require.NoError(t, s.RequestZoom(context.Background(), ZoomIn))
	assert.InDelta(t, session.DefaultZoomLevel*ZoomStepFactor, sess.Zoom(), 1e-9)

	require.NoError(t, s.RequestZoom(context.Background(), ZoomOut))
	assert.InDelta(t, session.DefaultZoomLevel, sess.Zoom(), 1e-9)

	assert.Len(t, client.zoomCalls(), 2)
}

func TestRequestZoomWithoutHandleIsNoop(t *testing.T) {
	client := &fakeZoomClient{}
	sess := session.New("s1", "/runs/s1", "downtown")
	s := NewSynchronizer(client, sess, Options{})

	require.NoError(t, s.RequestZoom(context.Background(), ZoomIn))
	assert.Empty(t, client.zoomCalls())
	assert.Equal(t, session.DefaultZoomLevel, sess.Zoom())
}

func TestRequestZoomNoOptimisticUpdateOnFailure(t *testing.T) {
	client := &fakeZoomClient{setErr: errors.BackendUnreachable("set zoom", nil)}
	sess := runningSession(t)
	s := NewSynchronizer(client, sess, Options{})

	err := s.RequestZoom(context.Background(), ZoomIn)
	require.Error(t, err)
	assert.Equal(t, session.DefaultZoomLevel, sess.Zoom())
	assert.Equal(t, "failed to change zoom", sess.LastError())
}

func TestRequestZoomClearsPriorError(t *testing.T) {
	client := &fakeZoomClient{}
	sess := runningSession(t)
	s := NewSynchronizer(client, sess, Options{})

	sess.SetLastError("launch failed: port in use")
	require.NoError(t, s.RequestZoom(context.Background(), ZoomIn))
	assert.Empty(t, sess.LastError())
}

func TestRequestZoomSingleFlight(t *testing.T) {
	client := &fakeZoomClient{
		setGate:    make(chan struct{}),
		setEntered: make(chan struct{}, 1),
	}
	sess := runningSession(t)
	s := NewSynchronizer(client, sess, Options{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.RequestZoom(context.Background(), ZoomIn)
	}()

	// wait until the first request is inside SetZoom
	<-client.setEntered

	// a second click while the first is unresolved is rejected, and the
	// rejection leaves any displayed error alone
	sess.SetLastError("stream dropped")
	err := s.RequestZoom(context.Background(), ZoomIn)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeZoomBusy, errors.GetCode(err))
	assert.Equal(t, "stream dropped", sess.LastError())
	sess.ClearError()

	close(client.setGate)
	require.NoError(t, <-firstDone)

	// exactly one step applied
	assert.Equal(t, []float64{session.DefaultZoomLevel * ZoomStepFactor}, client.zoomCalls())
	assert.InDelta(t, session.DefaultZoomLevel*ZoomStepFactor, sess.Zoom(), 1e-9)

	// and the slot is free again afterwards
	client.setEntered = nil
	require.NoError(t, s.RequestZoom(context.Background(), ZoomOut))
}

func TestPollZoomReconcilesFromBackend(t *testing.T) {
	client := &fakeZoomClient{zoomLevel: 175.0}
	sess := runningSession(t)
	s := NewSynchronizer(client, sess, Options{})

	s.PollZoom(context.Background())
	assert.Equal(t, 175.0, sess.Zoom())
}

func TestPollZoomRequiresActiveProcess(t *testing.T) {
	client := &fakeZoomClient{zoomLevel: 175.0}
	sess := session.New("s1", "/runs/s1", "downtown")
	s := NewSynchronizer(client, sess, Options{})

	s.PollZoom(context.Background())
	assert.Equal(t, 0, client.getCalls)
	assert.Equal(t, session.DefaultZoomLevel, sess.Zoom())
}

func TestPollZoomFailureKeepsLocalLevel(t *testing.T) {
	client := &fakeZoomClient{getErr: errors.BackendUnreachable("get zoom", nil)}
	sess := runningSession(t)
	sess.SetZoom(130.0)
	s := NewSynchronizer(client, sess, Options{})

	s.PollZoom(context.Background())
	assert.Equal(t, 130.0, sess.Zoom())
	assert.Empty(t, sess.LastError())
}

func TestZoomChangedMatchesProcessHandle(t *testing.T) {
	sess := runningSession(t)
	s := NewSynchronizer(&fakeZoomClient{}, sess, Options{})

	s.ApplyZoomChanged(backend.ZoomChangedEvent{ProcessID: 9999, ZoomLevel: 300.0})
	assert.Equal(t, session.DefaultZoomLevel, sess.Zoom())

	s.ApplyZoomChanged(backend.ZoomChangedEvent{ProcessID: 4242, ZoomLevel: 300.0})
	assert.Equal(t, 300.0, sess.Zoom())
}

func TestViewCenteredAppliesOptionalZoom(t *testing.T) {
	sess := runningSession(t)
	s := NewSynchronizer(&fakeZoomClient{}, sess, Options{})

	s.ApplyViewCentered(backend.ViewCenteredEvent{ProcessID: 4242})
	assert.Equal(t, session.DefaultZoomLevel, sess.Zoom())

	level := 210.0
	s.ApplyViewCentered(backend.ViewCenteredEvent{ProcessID: 1, ZoomLevel: &level})
	assert.Equal(t, session.DefaultZoomLevel, sess.Zoom())

	s.ApplyViewCentered(backend.ViewCenteredEvent{ProcessID: 4242, ZoomLevel: &level})
	assert.Equal(t, 210.0, sess.Zoom())
}

func TestClockTicksOnlyWhileRunning(t *testing.T) {
	client := &fakeZoomClient{}
	sess := runningSession(t)

	var mu sync.Mutex
	now := time.Now()
	s := NewSynchronizer(client, sess, Options{
		ClockTick: 5 * time.Millisecond,
		// each tick observes a wall clock one second further along
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		},
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return sess.Clock().ElapsedRealTime > 0
	}, time.Second, 5*time.Millisecond)

	// pausing silences the tick without resetting the clock
	require.NoError(t, sess.MarkPaused())
	time.Sleep(20 * time.Millisecond)
	frozen := sess.Clock().ElapsedRealTime
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, sess.Clock().ElapsedRealTime)
	assert.Greater(t, frozen, time.Duration(0))
}

func TestStartTwiceFails(t *testing.T) {
	s := NewSynchronizer(&fakeZoomClient{}, runningSession(t), Options{})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	err := s.Start(context.Background())
	require.Error(t, err)
}

func TestStopIsIdempotentAndRestartable(t *testing.T) {
	s := NewSynchronizer(&fakeZoomClient{}, runningSession(t), Options{})

	// Stop before Start is a no-op
	s.Stop()

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()

	// a stopped synchronizer can be started again
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestConnectionStateTracking(t *testing.T) {
	s := NewSynchronizer(&fakeZoomClient{}, runningSession(t), Options{})
	assert.Equal(t, backend.ConnDisconnected, s.ConnectionState())

	s.ApplyConnectionEvent(backend.ConnectionEvent{State: backend.ConnConnected})
	assert.Equal(t, backend.ConnConnected, s.ConnectionState())

	s.ApplyConnectionEvent(backend.ConnectionEvent{State: backend.ConnError, Detail: "read failed"})
	assert.Equal(t, backend.ConnError, s.ConnectionState())
}

func TestHandleEventDispatch(t *testing.T) {
	sess := runningSession(t)
	s := NewSynchronizer(&fakeZoomClient{}, sess, Options{})

	s.HandleEvent(backend.StatsEvent{Raw: map[string]interface{}{
		"data": map[string]interface{}{"simulation_time": 33.0},
	}})
	assert.Equal(t, 33.0, sess.Telemetry().SimulatedTime)

	s.HandleEvent(backend.ZoomChangedEvent{ProcessID: 4242, ZoomLevel: 144.0})
	assert.Equal(t, 144.0, sess.Zoom())

	s.HandleEvent(backend.ConnectionEvent{State: backend.ConnConnected})
	assert.Equal(t, backend.ConnConnected, s.ConnectionState())

	// status events are not the synchronizer's concern
	s.HandleEvent(backend.StatusEvent{Status: "paused"})
	assert.Equal(t, session.StateRunning, sess.State())
}
