package main

import (
	"fmt"
	"io"

	"github.com/AX-AIAgents/AgentX/internal/results"
)

// printRunSummary writes the per-task results and run digest in a stable,
// human-readable layout.
func printRunSummary(w io.Writer, report results.RunReport, participantName, savedPath string) {
	fmt.Fprintf(w, "\nEvaluation of %s (%s)\n", participantName, report.RunID)
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────────────")

	for _, t := range report.Tasks {
		icon := statusIcon(t.Status)
		fmt.Fprintf(w, "%s %-24s %-8s score=%.4f  (action=%.4f argument=%.4f efficiency=%.4f, %d turns)\n",
			icon, t.TaskID, t.Status, t.Scores.Total,
			t.Scores.Action, t.Scores.Argument, t.Scores.Efficiency, t.Turns)
		if t.Error != "" {
			fmt.Fprintf(w, "   error: %s\n", t.Error)
		}
		for _, missing := range t.Breakdown.MissingTools {
			fmt.Fprintf(w, "   missing tool: %s\n", missing)
		}
	}

	fmt.Fprintln(w, "─────────────────────────────────────────────────────────────────")
	d := report.Digest
	fmt.Fprintf(w, "%d tasks: %d succeeded, %d failed, %d timed out, %d errored\n",
		d.TotalTasks, d.Succeeded, d.Failed, d.Timeouts, d.Errors)
	fmt.Fprintf(w, "average score: %.4f\n", d.AvgScore)
	fmt.Fprintf(w, "report saved to %s\n", savedPath)
}

func statusIcon(s results.Status) string {
	switch s {
	case results.StatusSuccess:
		return "✅"
	case results.StatusTimeout:
		return "⏱"
	case results.StatusError:
		return "⚠️"
	default:
		return "❌"
	}
}
