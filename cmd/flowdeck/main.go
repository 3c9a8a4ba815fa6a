package main

import (
	"os"

	"github.com/flowdeck/core/cli"
	"github.com/flowdeck/core/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"flowdeck",
		"Session control and live telemetry for the traffic simulation dashboard",
	)

	// Add subcommands
	rootCmd.AddCommand(cmd.NewVersionCmd())
	rootCmd.AddCommand(cmd.NewRunCmd())
	rootCmd.AddCommand(cmd.NewBackendCmd())
	rootCmd.AddCommand(cmd.NewSessionsCmd())

	cli.ApplyStyledHelpRecursive(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
