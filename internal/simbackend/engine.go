// Package simbackend is a self-contained stand-in for the simulation
// engine's control server. It speaks the same REST and push-channel
// contract as the real backend and generates synthetic traffic telemetry,
// so the dashboard stack can be run and exercised without an engine
// installation.
package simbackend

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultZoom = 100.0

// EngineOptions tunes the synthetic simulation.
type EngineOptions struct {
	// TickInterval is the cadence of telemetry pushes. Default 500ms.
	TickInterval time.Duration
	// EpisodeDuration is the simulated run length before the episode
	// completes on its own. Default 60s.
	EpisodeDuration time.Duration
	// BasePort is the fake engine port reported in process handles.
	BasePort int
}

// process is one synthetic simulation run.
type process struct {
	id        int
	port      int
	sessionID string
	cancel    context.CancelFunc

	mu       sync.Mutex
	rng      *rand.Rand
	paused   bool
	simTime  float64
	vehicles int
	zoom     float64
}

// Engine owns the synthetic processes and emits their telemetry on the
// hub. At most one process runs at a time, mirroring the real engine's
// single GUI port.
type Engine struct {
	logger *logrus.Entry
	hub    *hub
	opts   EngineOptions
	rng    *rand.Rand

	mu      sync.Mutex
	current *process
	nextID  int
	wg      sync.WaitGroup
}

// NewEngine creates an Engine broadcasting on h.
func NewEngine(logger *logrus.Entry, h *hub, opts EngineOptions) *Engine {
	if opts.TickInterval == 0 {
		opts.TickInterval = 500 * time.Millisecond
	}
	if opts.EpisodeDuration == 0 {
		opts.EpisodeDuration = 60 * time.Second
	}
	if opts.BasePort == 0 {
		opts.BasePort = 9100
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Engine{
		logger: logger,
		hub:    h,
		opts:   opts,
		rng:    rng,
		nextID: 1000 + rng.Intn(9000),
	}
}

// Launch starts a synthetic run for the session. A second launch while one
// is active is rejected the way the real engine rejects a busy GUI port.
func (e *Engine) Launch(sessionID string) (processID, port int, ok bool, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		return 0, 0, false, "simulation port is already in use by a running process"
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &process{
		id:        e.nextID,
		port:      e.opts.BasePort,
		sessionID: sessionID,
		cancel:    cancel,
		rng:       rand.New(rand.NewSource(e.rng.Int63())),
		zoom:      defaultZoom,
	}
	p.vehicles = 5 + p.rng.Intn(10)
	e.nextID++
	e.current = p

	e.wg.Add(1)
	go e.run(ctx, p)

	e.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"pid":     p.id,
	}).Info("Synthetic simulation launched")
	return p.id, p.port, true, ""
}

// run is the telemetry tick loop for one process.
func (e *Engine) run(ctx context.Context, p *process) {
	defer e.wg.Done()
	defer p.cancel()
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	deadline := time.After(e.opts.EpisodeDuration)

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			e.complete(p)
			return
		case <-ticker.C:
			if stats := e.tick(p); stats != nil {
				e.hub.broadcast("simulation_stats", map[string]interface{}{"data": stats})
			}
		}
	}
}

// tick advances the synthetic traffic model one step and returns the stats
// payload, or nil while paused.
func (e *Engine) tick(p *process) map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return nil
	}

	p.simTime += e.opts.TickInterval.Seconds()
	// vehicle count drifts by at most one per tick, never below zero
	p.vehicles += p.rng.Intn(3) - 1
	if p.vehicles < 0 {
		p.vehicles = 0
	}

	speed := 8.0 + p.rng.Float64()*6.0
	return map[string]interface{}{
		"simulation_time": p.simTime,
		"active_vehicles": p.vehicles,
		"avg_speed":       speed,
		"throughput":      float64(p.vehicles) * speed * 4.0,
		"co2":             float64(p.vehicles) * 0.42,
		"nox":             float64(p.vehicles) * 0.011,
		"fuel":            float64(p.vehicles) * 0.16,
		"zoom_level":      p.zoom,
	}
}

// complete ends the episode naturally: a status push, the distinct
// completion signal, then removal of the process.
func (e *Engine) complete(p *process) {
	e.mu.Lock()
	if e.current == p {
		e.current = nil
	}
	e.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	e.hub.broadcast("simulation_status", map[string]interface{}{
		"status":       "completed",
		"reason":       "episode finished",
		"completed_at": now,
	})
	e.hub.broadcast("session_completed", map[string]interface{}{
		"reason":       "episode finished",
		"can_analyze":  true,
		"completed_at": now,
	})
	e.logger.WithField("pid", p.id).Info("Synthetic simulation completed")
}

// lookup returns the active process if it matches id.
func (e *Engine) lookup(id int) *process {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.id != id {
		return nil
	}
	return e.current
}

// Pause suspends the process's tick loop output.
func (e *Engine) Pause(id int) bool {
	p := e.lookup(id)
	if p == nil {
		return false
	}
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	e.hub.broadcast("simulation_status", map[string]interface{}{"status": "paused"})
	return true
}

// Resume continues a paused process.
func (e *Engine) Resume(id int) bool {
	p := e.lookup(id)
	if p == nil {
		return false
	}
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	e.hub.broadcast("simulation_status", map[string]interface{}{"status": "running"})
	return true
}

// Stop terminates the process without the completion signal.
func (e *Engine) Stop(id int) bool {
	e.mu.Lock()
	p := e.current
	if p == nil || p.id != id {
		e.mu.Unlock()
		return false
	}
	e.current = nil
	e.mu.Unlock()

	p.cancel()
	e.hub.broadcast("simulation_status", map[string]interface{}{"status": "stopped"})
	e.logger.WithField("pid", id).Info("Synthetic simulation stopped")
	return true
}

// Zoom returns the process's current zoom level.
func (e *Engine) Zoom(id int) (float64, bool) {
	p := e.lookup(id)
	if p == nil {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zoom, true
}

// SetZoom applies an absolute zoom level and announces it on the push
// channel, matching the engine's behavior for viewer-driven changes.
func (e *Engine) SetZoom(id int, level float64) bool {
	p := e.lookup(id)
	if p == nil {
		return false
	}
	p.mu.Lock()
	p.zoom = level
	p.mu.Unlock()

	e.hub.broadcast("zoom_changed", map[string]interface{}{
		"processId": id,
		"zoomLevel": level,
	})
	return true
}

// Shutdown stops any active process and waits for its loop to exit.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	p := e.current
	e.current = nil
	e.mu.Unlock()
	if p != nil {
		p.cancel()
	}
	e.wg.Wait()
}
