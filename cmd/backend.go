package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowdeck/core/internal/simbackend"
)

// NewBackendCmd returns the synthetic backend command.
func NewBackendCmd() *cobra.Command {
	var (
		addr    string
		tick    time.Duration
		episode time.Duration
	)

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the synthetic simulation backend",
		Long: `Run a self-contained stand-in for the simulation engine's control
server. It speaks the full REST and push-channel contract and generates
synthetic traffic telemetry, so the dashboard stack can be exercised
without an engine installation.

Examples:
  # Serve on the default address
  flowdeck backend

  # Short episodes for quick demos
  flowdeck backend --episode 30s --tick 250ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := simbackend.New(simbackend.EngineOptions{
				TickInterval:    tick,
				EpisodeDuration: episode,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe(addr)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "Listen address")
	cmd.Flags().DurationVar(&tick, "tick", 500*time.Millisecond, "Telemetry push interval")
	cmd.Flags().DurationVar(&episode, "episode", 60*time.Second, "Episode length before the run completes on its own")
	return cmd
}
