package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentx",
		Short: "AgentX - evaluates tool-using agents over JSON-RPC messaging",
		Long: `AgentX evaluates tool-using agents against scripted tasks.

It drives an agent through a task over JSON-RPC message/send exchanges,
relays its tool calls through a gateway, and scores the resulting trace on
action selection, argument quality, and efficiency.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSessionCommand())
	cmd.AddCommand(newRunsCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
