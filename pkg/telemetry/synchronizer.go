// Package telemetry ingests asynchronous pushes from the simulation
// backend and keeps the session's live view model current: statistics
// snapshots in any of their three historical wire shapes, the wall-clock
// timer that runs alongside simulated time, and the zoom round trip with
// its reconciliation poll.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flowdeck/core/errors"
	"github.com/flowdeck/core/logging"
	"github.com/flowdeck/core/pkg/backend"
	"github.com/flowdeck/core/pkg/session"
)

// ZoomStepFactor is the proportional step of one zoom click: in multiplies
// by it, out divides. Zoom is unbounded in both directions.
const ZoomStepFactor = 1.2

// ZoomDirection selects zoom in or out.
type ZoomDirection int

const (
	ZoomIn ZoomDirection = iota
	ZoomOut
)

// Options tunes the synchronizer's timers.
type Options struct {
	// ClockTick is the real-time clock recompute cadence. Default 1s.
	ClockTick time.Duration
	// ZoomPollInterval is the authoritative-zoom fetch cadence while a
	// process is running or paused. Default 2s.
	ZoomPollInterval time.Duration
	// Now overrides the wall-clock source, for tests.
	Now func() time.Time
}

// Synchronizer owns event ingestion and the session-scoped timers. Create
// one per session, call Start when the session page opens and Stop when it
// closes; both timer goroutines are owned by the synchronizer and are
// guaranteed released by Stop.
type Synchronizer struct {
	client backend.Client
	sess   *session.Session
	logger *logrus.Entry

	clockTick time.Duration
	zoomPoll  time.Duration
	now       func() time.Time

	mu           sync.Mutex
	zoomInFlight bool
	connState    backend.ConnState
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewSynchronizer creates a Synchronizer for one session.
func NewSynchronizer(client backend.Client, sess *session.Session, opts Options) *Synchronizer {
	if opts.ClockTick == 0 {
		opts.ClockTick = time.Second
	}
	if opts.ZoomPollInterval == 0 {
		opts.ZoomPollInterval = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Synchronizer{
		client:    client,
		sess:      sess,
		logger:    logging.NewLogger("telemetry"),
		clockTick: opts.ClockTick,
		zoomPoll:  opts.ZoomPollInterval,
		now:       opts.Now,
		connState: backend.ConnDisconnected,
	}
}

// Start launches the clock tick and zoom poll loops. Calling Start twice
// without an intervening Stop is an error.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New(errors.ErrCodeInternal, "synchronizer already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.clockLoop(loopCtx)
	go s.zoomPollLoop(loopCtx)
	return nil
}

// Stop halts both loops and waits for them to exit. Idempotent.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// clockLoop recomputes elapsed real time once per tick, but only while the
// session is running: leaving running silences the tick immediately even
// though the goroutine lives for the session page's lifetime.
func (s *Synchronizer) clockLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.clockTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.sess.State() == session.StateRunning {
				s.sess.TickClock(s.now())
			}
		}
	}
}

// zoomPollLoop periodically fetches the authoritative zoom level while a
// process is running or paused. This is the correction path for zoom
// changes driven outside this client, e.g. in the engine's own viewer.
func (s *Synchronizer) zoomPollLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.zoomPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollZoom(ctx)
		}
	}
}

// PollZoom reconciles the local zoom level against the backend once. A
// no-op unless the session is running or paused with a live handle.
func (s *Synchronizer) PollZoom(ctx context.Context) {
	handle := s.sess.Handle()
	if handle == nil || !s.sess.State().Active() {
		return
	}

	level, err := s.client.GetZoom(ctx, handle.ProcessID)
	if err != nil {
		// Poll failures are routine during shutdown races; never surfaced.
		s.logger.WithError(err).Debug("Zoom poll failed")
		return
	}
	s.sess.SetZoom(level)
}

// ApplyStatsUpdate normalizes one raw telemetry payload and applies it to
// the snapshot. Absent fields keep their previous values; an undecodable
// payload is an error and leaves the snapshot untouched.
func (s *Synchronizer) ApplyStatsUpdate(raw map[string]interface{}) error {
	update, err := decodeStats(raw)
	if err != nil {
		return err
	}
	s.sess.UpdateTelemetry(update)
	return nil
}

// RequestZoom issues one zoom step against the backend. The local level
// changes only on backend confirmation; no optimistic update. While one
// request is in flight, further requests for this session are rejected
// with ErrCodeZoomBusy so rapid double-clicks cannot apply out of order.
func (s *Synchronizer) RequestZoom(ctx context.Context, dir ZoomDirection) error {
	handle := s.sess.Handle()
	if handle == nil {
		s.logger.Debug("Ignoring zoom: no active process")
		return nil
	}

	s.mu.Lock()
	if s.zoomInFlight {
		s.mu.Unlock()
		return errors.ZoomBusy(s.sess.ID())
	}
	s.zoomInFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.zoomInFlight = false
		s.mu.Unlock()
	}()

	// A new action clears the prior error; a ZoomBusy rejection does not.
	s.sess.ClearError()

	level := s.sess.Zoom()
	if dir == ZoomIn {
		level *= ZoomStepFactor
	} else {
		level /= ZoomStepFactor
	}

	if err := s.client.SetZoom(ctx, handle.ProcessID, level); err != nil {
		s.sess.SetLastError("failed to change zoom")
		return err
	}
	s.sess.SetZoom(level)
	return nil
}

// ApplyZoomChanged applies an externally-driven zoom change. Events for a
// different process handle are ignored.
func (s *Synchronizer) ApplyZoomChanged(ev backend.ZoomChangedEvent) {
	handle := s.sess.Handle()
	if handle == nil || handle.ProcessID != ev.ProcessID {
		return
	}
	s.sess.SetZoom(ev.ZoomLevel)
}

// ApplyViewCentered applies a view-centered event; its zoom level, when
// present, has the same precedence as a direct zoom confirmation.
func (s *Synchronizer) ApplyViewCentered(ev backend.ViewCenteredEvent) {
	handle := s.sess.Handle()
	if handle == nil || handle.ProcessID != ev.ProcessID {
		return
	}
	if ev.ZoomLevel != nil {
		s.sess.SetZoom(*ev.ZoomLevel)
	}
}

// ApplyConnectionEvent tracks push-channel connectivity, independent of
// the lifecycle state.
func (s *Synchronizer) ApplyConnectionEvent(ev backend.ConnectionEvent) {
	s.mu.Lock()
	s.connState = ev.State
	s.mu.Unlock()
	s.logger.WithField("state", ev.State).Debug("Push channel connection changed")
}

// ConnectionState returns the last observed push-channel state.
func (s *Synchronizer) ConnectionState() backend.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState
}

// HandleEvent dispatches the synchronizer's share of push events. Status
// and completion events belong to the lifecycle controller; everything
// else lands here.
func (s *Synchronizer) HandleEvent(ev backend.Event) {
	switch e := ev.(type) {
	case backend.StatsEvent:
		if err := s.ApplyStatsUpdate(e.Raw); err != nil {
			s.logger.WithError(err).Warn("Dropping stats update")
		}
	case backend.ZoomChangedEvent:
		s.ApplyZoomChanged(e)
	case backend.ViewCenteredEvent:
		s.ApplyViewCentered(e)
	case backend.ConnectionEvent:
		s.ApplyConnectionEvent(e)
	}
}
