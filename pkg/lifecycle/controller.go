// Package lifecycle drives a simulation run through its state machine. The
// Controller is the only writer of lifecycle state and the process handle:
// it translates user intents into backend commands and interprets command
// results and backend-pushed status events into transitions. Commands are
// fire-and-report; the Controller never retries on its own.
package lifecycle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flowdeck/core/errors"
	"github.com/flowdeck/core/logging"
	"github.com/flowdeck/core/pkg/backend"
	"github.com/flowdeck/core/pkg/session"
)

// LaunchedNotification is emitted after a successful launch for any
// interested collaborator (charts, notifications, the telemetry page).
type LaunchedNotification struct {
	SessionID string `json:"sessionId"`
	ProcessID int    `json:"processId"`
}

// Controller mediates every state-changing command for a session.
type Controller struct {
	client     backend.Client
	logger     *logrus.Entry
	now        func() time.Time
	onLaunched func(LaunchedNotification)
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier installs a callback invoked after each successful launch.
func WithNotifier(fn func(LaunchedNotification)) Option {
	return func(c *Controller) { c.onLaunched = fn }
}

// WithClock overrides the wall-clock source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a Controller talking to the given backend.
func NewController(client backend.Client, opts ...Option) *Controller {
	c := &Controller{
		client: client,
		logger: logging.NewLogger("lifecycle"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Launch starts a new process episode. Valid from ready, stopped, or error.
// On success the returned handle is attached, the session enters running,
// and the real-time clock starts. On failure the session enters error with
// the backend's message, or a generic one for transport failures.
func (c *Controller) Launch(ctx context.Context, sess *session.Session, cfg backend.SimulationConfig) error {
	if sess == nil || cfg == nil {
		return errors.New(errors.ErrCodeInvalidInput, "session and config are required to launch")
	}

	sess.ClearError()
	if err := sess.BeginLaunch(); err != nil {
		c.logger.WithField("sessionId", sess.ID()).WithError(err).Warn("Launch not allowed in current state")
		return err
	}

	handle, err := c.client.Launch(ctx, backend.LaunchRequest{
		SessionID:      sess.ID(),
		SessionPath:    sess.Path(),
		Config:         cfg,
		EnableGui:      true,
		EnableLiveData: true,
	})
	if err != nil {
		msg := userMessage(err, "failed to launch simulation")
		if failErr := sess.FailLaunch(msg); failErr != nil {
			// A concurrent event already moved the session on; the late
			// failure is logged and dropped.
			c.logger.WithField("sessionId", sess.ID()).WithError(failErr).Warn("Dropping stale launch failure")
		}
		return err
	}

	if err := sess.CompleteLaunch(handle, c.now()); err != nil {
		c.logger.WithFields(logrus.Fields{
			"sessionId": sess.ID(),
			"processId": handle.ProcessID,
		}).WithError(err).Warn("Dropping stale launch success")
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"sessionId": sess.ID(),
		"processId": handle.ProcessID,
		"port":      handle.Port,
	}).Info("Simulation launched")

	if c.onLaunched != nil {
		c.onLaunched(LaunchedNotification{SessionID: sess.ID(), ProcessID: handle.ProcessID})
	}
	return nil
}

// Pause suspends the running simulation. Without a running process this is
// a logged no-op. A backend failure surfaces an error and leaves the state
// untouched: the backend is the source of truth and a failed pause implies
// the process is still running.
func (c *Controller) Pause(ctx context.Context, sess *session.Session) error {
	handle := sess.Handle()
	if sess.State() != session.StateRunning || handle == nil {
		c.logger.WithFields(logrus.Fields{
			"sessionId": sess.ID(),
			"state":     sess.State(),
		}).Debug("Ignoring pause: not running")
		return nil
	}

	sess.ClearError()
	if err := c.client.Pause(ctx, handle.ProcessID); err != nil {
		sess.SetLastError(userMessage(err, "failed to pause simulation"))
		return err
	}

	if err := sess.MarkPaused(); err != nil {
		c.logger.WithField("sessionId", sess.ID()).WithError(err).Warn("Dropping stale pause confirmation")
		return err
	}
	c.logger.WithField("sessionId", sess.ID()).Info("Simulation paused")
	return nil
}

// Resume continues a paused simulation. Symmetric to Pause.
func (c *Controller) Resume(ctx context.Context, sess *session.Session) error {
	handle := sess.Handle()
	if sess.State() != session.StatePaused || handle == nil {
		c.logger.WithFields(logrus.Fields{
			"sessionId": sess.ID(),
			"state":     sess.State(),
		}).Debug("Ignoring resume: not paused")
		return nil
	}

	sess.ClearError()
	if err := c.client.Resume(ctx, handle.ProcessID); err != nil {
		sess.SetLastError(userMessage(err, "failed to resume simulation"))
		return err
	}

	if err := sess.MarkResumed(); err != nil {
		c.logger.WithField("sessionId", sess.ID()).WithError(err).Warn("Dropping stale resume confirmation")
		return err
	}
	c.logger.WithField("sessionId", sess.ID()).Info("Simulation resumed")
	return nil
}

// Stop terminates the simulation process. On success the session enters
// stopped, the handle is cleared, and the synchronizer's polling halts by
// observing the state change.
func (c *Controller) Stop(ctx context.Context, sess *session.Session) error {
	handle := sess.Handle()
	if handle == nil {
		c.logger.WithField("sessionId", sess.ID()).Debug("Ignoring stop: no active process")
		return nil
	}

	sess.ClearError()
	if err := c.client.Stop(ctx, handle.ProcessID); err != nil {
		sess.SetLastError(userMessage(err, "failed to stop simulation"))
		return err
	}

	if err := sess.MarkStopped(); err != nil {
		c.logger.WithField("sessionId", sess.ID()).WithError(err).Warn("Dropping stale stop confirmation")
		return err
	}
	c.logger.WithField("sessionId", sess.ID()).Info("Simulation stopped")
	return nil
}

// HandleStatusEvent interprets a backend-pushed status change. "completed"
// and "stopped" force the finished state; anything else is adopted
// verbatim, subject to the transition table. A pushed error field is
// surfaced independent of the transition.
func (c *Controller) HandleStatusEvent(sess *session.Session, ev backend.StatusEvent) {
	if ev.Error != "" {
		sess.SetLastError(ev.Error)
	}

	state := ev.EffectiveState()
	switch state {
	case "completed", "stopped":
		sess.Finish(ev.Reason, ev.CompletedAt)
		c.logger.WithFields(logrus.Fields{
			"sessionId": sess.ID(),
			"reason":    ev.Reason,
		}).Info("Simulation finished")
	case "":
		c.logger.WithField("sessionId", sess.ID()).Debug("Status event without a state")
	default:
		if err := sess.AdoptState(session.State(state)); err != nil {
			c.logger.WithFields(logrus.Fields{
				"sessionId": sess.ID(),
				"pushed":    state,
			}).WithError(err).Warn("Rejected pushed state")
		}
	}
}

// HandleSessionCompleted applies the distinct completion signal: the
// session is forced to finished, the handle cleared, and canAnalyze set
// from the payload (false when absent).
func (c *Controller) HandleSessionCompleted(sess *session.Session, ev backend.SessionCompletedEvent) {
	sess.Finish(ev.Reason, ev.CompletedAt)
	sess.SetCanAnalyze(ev.CanAnalyze)
	c.logger.WithFields(logrus.Fields{
		"sessionId":  sess.ID(),
		"reason":     ev.Reason,
		"canAnalyze": ev.CanAnalyze,
	}).Info("Session completed")
}

// Save persists the finished run's results on the backend and flips
// canAnalyze. Valid only once the session has reached finished.
func (c *Controller) Save(ctx context.Context, sess *session.Session, force bool) error {
	if sess.State() != session.StateFinished {
		return errors.InvalidTransition(string(sess.State()), "save")
	}

	sess.ClearError()
	if err := c.client.SaveSession(ctx, backend.SaveRequest{
		SessionID:   sess.ID(),
		SessionPath: sess.Path(),
		Force:       force,
	}); err != nil {
		sess.SetLastError(userMessage(err, "failed to save session"))
		return err
	}

	if err := sess.MarkSaved(c.now()); err != nil {
		return err
	}
	c.logger.WithField("sessionId", sess.ID()).Info("Session saved")
	return nil
}

// userMessage extracts the message to show the user: backend rejections are
// shown verbatim, transport failures get the generic fallback.
func userMessage(err error, fallback string) string {
	switch errors.GetCode(err) {
	case errors.ErrCodeLaunchRejected, errors.ErrCodeCommandRejected:
		if fdErr, ok := err.(*errors.FlowdeckError); ok {
			return fdErr.Message
		}
	}
	return fallback
}
