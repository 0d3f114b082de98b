package main

import (
	"fmt"
	"path/filepath"

	"github.com/AX-AIAgents/AgentX/internal/session"
	"github.com/spf13/cobra"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect recorded session event logs",
		Long: `Inspect recorded session event logs.

Event logs are NDJSON files produced by runs started with --session-log.
Each line is one event: session start, a turn, a tool dispatch, a state
change, or completion.`,
	}

	cmd.AddCommand(newSessionListCommand(), newSessionViewCommand())
	return cmd
}

func newSessionListCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List event logs in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			logDir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			logs, err := session.ListSessions(logDir)
			if err != nil {
				return fmt.Errorf("listing event logs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(logs) == 0 {
				fmt.Fprintf(out, "No event logs in %s.\n", logDir)
				return nil
			}

			fmt.Fprintf(out, "%-40s %8s  %s\n", "File", "Events", "Modified")
			for _, lg := range logs {
				fmt.Fprintf(out, "%-40s %8d  %s\n",
					lg.Name, lg.NumEvents, lg.ModTime.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "sessions/", "Directory holding event logs")
	return cmd
}

func newSessionViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view <event-log>",
		Short: "Print an event log as a timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := session.ReadEvents(args[0])
			if err != nil {
				return fmt.Errorf("reading event log: %w", err)
			}
			session.RenderTimeline(cmd.OutOrStdout(), events)
			return nil
		},
	}
}
