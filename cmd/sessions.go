package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowdeck/core/cli"
	"github.com/flowdeck/core/pkg/sessions"
)

// NewSessionsCmd returns the sessions command for browsing archived runs.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage archived simulation sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsRemoveCmd())
	return cmd
}

func openArchive(cmd *cobra.Command) (*sessions.FileSystemArchive, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return sessions.NewFileSystemArchive(cfg.Sessions.ArchiveDir)
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			records, err := archive.List()
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				data, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if len(records) == 0 {
				fmt.Println("No archived sessions.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tNETWORK\tSTATE\tSIM TIME\tCOMPLETED\tANALYZE")
			for _, r := range records {
				completed := "-"
				if r.CompletedAt != nil {
					completed = r.CompletedAt.Local().Format(time.RFC822)
				}
				analyze := "no"
				if r.CanAnalyze {
					analyze = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1fs\t%s\t%s\n",
					r.SessionID, r.NetworkName, r.FinalState, r.Telemetry.SimulatedTime, completed, analyze)
			}
			return w.Flush()
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one archived session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			record, err := archive.Load(args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newSessionsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id>",
		Short: "Remove an archived session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			return archive.Remove(args[0])
		},
	}
}
