package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AX-AIAgents/AgentX/internal/results"
	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect saved run reports",
	}

	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())

	return cmd
}

func newRunsListCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved run reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := results.NewFileStore(dir)
			runs, err := store.ListRuns()
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}

			if len(runs) == 0 {
				fmt.Println("No run reports found.")
				return nil
			}

			fmt.Printf("%-28s %-8s %-10s %s\n", "Run", "Tasks", "Succeeded", "Avg Score")
			for _, r := range runs {
				fmt.Printf("%-28s %-8d %-10d %.4f\n", r.ID, r.TaskCount, r.Succeeded, r.AvgScore)
			}

			summary, err := store.Summary()
			if err != nil {
				return err
			}
			fmt.Printf("\n%d runs, %d tasks, success rate %.1f%%\n",
				summary.TotalRuns, summary.TotalTasks, summary.SuccessRate*100)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "results/", "Directory containing run reports")

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := results.NewFileStore(dir)
			report, err := store.GetRun(args[0])
			if err != nil {
				return fmt.Errorf("loading run %q: %w", args[0], err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "results/", "Directory containing run reports")

	return cmd
}
