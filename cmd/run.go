package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flowdeck/core/cli"
	"github.com/flowdeck/core/config"
	"github.com/flowdeck/core/pkg/backend"
	"github.com/flowdeck/core/pkg/lifecycle"
	"github.com/flowdeck/core/pkg/session"
	"github.com/flowdeck/core/pkg/sessions"
	"github.com/flowdeck/core/pkg/telemetry"
)

// NewRunCmd returns the run command: launch a simulation, follow its
// telemetry until it ends, and archive the outcome.
func NewRunCmd() *cobra.Command {
	var (
		network     string
		sessionPath string
		saveResults bool
		params      []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch a simulation session and follow it to completion",
		Long: `Launch a simulation on the configured backend and follow its live
telemetry until the episode completes, the process is stopped, or the
command is interrupted. The outcome is recorded in the session archive.

Examples:
  # Run with the configured backend
  flowdeck run --network downtown

  # Pass engine parameters and save results when the episode completes
  flowdeck run --network a9 --set step_length=0.5 --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return cli.NewErrorHandler(false).Handle(err)
			}
			opts := cli.GetOptions(cmd)
			handler := cli.NewErrorHandler(opts.Verbose)

			console := cli.NewLogger(cli.WithOutput(os.Stderr))
			if opts.Verbose {
				console.SetLevel(logrus.DebugLevel)
			}

			simConfig := make(backend.SimulationConfig)
			for _, p := range params {
				key, value, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, expected key=value", p)
				}
				simConfig[key] = value
			}

			sess := session.New(uuid.NewString(), sessionPath, network)
			return runSession(cmd.Context(), console, handler, cfg, sess, simConfig, saveResults)
		},
	}

	cmd.Flags().StringVar(&network, "network", "", "Road network name shown in the session view")
	cmd.Flags().StringVar(&sessionPath, "path", "", "Session directory passed to the backend")
	cmd.Flags().BoolVar(&saveResults, "save", false, "Save results on the backend when the episode completes")
	cmd.Flags().StringArrayVar(&params, "set", nil, "Engine parameter as key=value (repeatable)")
	return cmd
}

func runSession(parent context.Context, console *logrus.Logger, handler *cli.ErrorHandler, cfg *config.Config, sess *session.Session, simConfig backend.SimulationConfig, saveResults bool) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	client := backend.NewHTTPClient(cfg.Backend.BaseURL, backend.Options{
		CommandTimeout: cfg.Backend.CommandTimeout.Std(),
		StreamURL:      cfg.Backend.StreamURL,
	})
	defer client.Close()

	controller := lifecycle.NewController(client, lifecycle.WithNotifier(func(n lifecycle.LaunchedNotification) {
		console.WithFields(logrus.Fields{
			"session": n.SessionID,
			"pid":     n.ProcessID,
		}).Info("Simulation launched")
	}))

	syncer := telemetry.NewSynchronizer(client, sess, telemetry.Options{
		ClockTick:        cfg.Telemetry.ClockTick.Std(),
		ZoomPollInterval: cfg.Telemetry.ZoomPollInterval.Std(),
	})

	archive, err := sessions.NewFileSystemArchive(cfg.Sessions.ArchiveDir)
	if err != nil {
		return handler.Handle(err)
	}

	// Hot-reload the config file if one is present. Timer cadences are
	// fixed for the lifetime of this run; a reload takes effect on the
	// next launch.
	if path, err := config.FindConfigFile(); err == nil {
		watcher, werr := cli.NewConfigWatcher(path, 0, func(next *config.Config) {
			console.WithFields(logrus.Fields{
				"file":    path,
				"backend": next.Backend.BaseURL,
			}).Info("Configuration reloaded; takes effect on the next run")
		})
		if werr != nil {
			console.WithError(werr).Warn("Config watch unavailable")
		} else {
			go watcher.Start(ctx)
			defer watcher.Close()
		}
	}

	// Subscribe before launching so no early push is missed.
	events, err := client.Subscribe(ctx)
	if err != nil {
		return handler.Handle(err)
	}

	if err := syncer.Start(ctx); err != nil {
		return handler.Handle(err)
	}
	defer syncer.Stop()

	if err := controller.Launch(ctx, sess, simConfig); err != nil {
		return handler.Handle(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	renderer := cli.NewStatusRenderer(os.Stdout)
	redraw := time.NewTicker(time.Second)
	defer redraw.Stop()

	for {
		select {
		case <-sigCh:
			console.Info("Interrupted, stopping simulation")
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Backend.CommandTimeout.Std())
			if err := controller.Stop(stopCtx, sess); err != nil {
				console.WithError(err).Warn("Stop failed")
			}
			stopCancel()
			if err := archive.Record(sess.Snapshot()); err != nil {
				console.WithError(err).Warn("Failed to archive session")
			}
			renderer.Done(sess.Snapshot())
			return nil

		case <-redraw.C:
			renderer.Render(sess.Snapshot())

		case ev, ok := <-events:
			if !ok {
				console.Warn("Push channel closed")
				return nil
			}
			switch e := ev.(type) {
			case backend.StatusEvent:
				controller.HandleStatusEvent(sess, e)
			case backend.SessionCompletedEvent:
				controller.HandleSessionCompleted(sess, e)
			default:
				syncer.HandleEvent(ev)
			}
			renderer.Render(sess.Snapshot())

			if sess.State() == session.StateFinished {
				if saveResults {
					saveCtx, saveCancel := context.WithTimeout(context.Background(), cfg.Backend.CommandTimeout.Std())
					if err := controller.Save(saveCtx, sess, false); err != nil {
						saveCancel()
						handler.Handle(err)
					} else {
						saveCancel()
						console.Info("Results saved")
					}
				}
				if err := archive.Record(sess.Snapshot()); err != nil {
					console.WithError(err).Warn("Failed to archive session")
				}
				renderer.Done(sess.Snapshot())
				return nil
			}
		}
	}
}
