package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/flowdeck/core/pkg/session"
)

// StatusRenderer prints a compact one-line view of a running session,
// used by the run command between telemetry pushes.
type StatusRenderer struct {
	out   io.Writer
	start time.Time
}

// NewStatusRenderer creates a renderer writing to out.
func NewStatusRenderer(out io.Writer) *StatusRenderer {
	return &StatusRenderer{
		out:   out,
		start: time.Now(),
	}
}

// Render prints the session's current state and telemetry snapshot.
func (r *StatusRenderer) Render(snap session.Snapshot) {
	s := DefaultStyles
	symbol := "[.]"
	switch snap.State {
	case session.StateRunning:
		symbol = "[~]"
	case session.StatePaused:
		symbol = "[=]"
	case session.StateFinished:
		symbol = "[*]"
	case session.StateError:
		symbol = "[x]"
	}

	line := fmt.Sprintf("%s %-9s sim %7.1fs  wall %s  vehicles %3d  speed %5.1f m/s  zoom %.0f",
		symbol,
		snap.State,
		snap.Telemetry.SimulatedTime,
		snap.ElapsedRealTime.Round(time.Second),
		snap.Telemetry.RunningVehicles,
		snap.Telemetry.AverageSpeed,
		snap.Telemetry.ZoomLevel,
	)
	if snap.LastError != "" {
		line += "  " + s.Red.Render(snap.LastError)
	}
	fmt.Fprintf(r.out, "\r\033[K%s", line)
}

// Done terminates the status line and prints the outcome.
func (r *StatusRenderer) Done(snap session.Snapshot) {
	fmt.Fprintln(r.out)
	elapsed := time.Since(r.start).Round(time.Millisecond)
	if snap.CompletionReason != "" {
		fmt.Fprintf(r.out, "Session %s %s (%s) in %s\n", snap.SessionID, snap.State, snap.CompletionReason, elapsed)
	} else {
		fmt.Fprintf(r.out, "Session %s %s in %s\n", snap.SessionID, snap.State, elapsed)
	}
}
