// Package results turns finished sessions into persisted run reports and
// reads them back for summaries.
package results

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/scoring"
	"github.com/AX-AIAgents/AgentX/internal/session"
)

// Status is the reported disposition of one task run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// TaskResult is the per-task entry in a run report. Score fields are
// rounded to four decimals for stable report diffs.
type TaskResult struct {
	TaskID     string              `json:"task_id"`
	SessionID  string              `json:"session_id"`
	Status     Status              `json:"status"`
	State      string              `json:"state"`
	Reason     string              `json:"reason,omitempty"`
	Error      string              `json:"error,omitempty"`
	Turns      int                 `json:"turns"`
	DurationMs int64               `json:"duration_ms"`
	Scores     scoring.ScoreVector `json:"scores"`
	Breakdown  scoring.Breakdown   `json:"breakdown"`
}

// Digest aggregates one run.
type Digest struct {
	TotalTasks int     `json:"total_tasks"`
	Succeeded  int     `json:"succeeded"`
	Failed     int     `json:"failed"`
	Errors     int     `json:"errors"`
	Timeouts   int     `json:"timeouts"`
	AvgScore   float64 `json:"avg_score"`
}

// RunReport is the persisted outcome of one evaluation run.
type RunReport struct {
	RunID       string       `json:"run_id"`
	Participant string       `json:"participant,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Tasks       []TaskResult `json:"tasks"`
	Digest      Digest       `json:"digest"`
}

// NewTaskResult builds a report entry from a finished session and its score.
func NewTaskResult(sess session.Session, vec scoring.ScoreVector, bd scoring.Breakdown) TaskResult {
	tr := TaskResult{
		TaskID:    sess.TaskID,
		SessionID: sess.ID,
		State:     string(sess.State),
		Reason:    string(sess.Reason),
		Error:     sess.ErrorMsg,
		Turns:     sess.TurnCount,
		Scores:    roundVector(vec),
		Breakdown: bd,
	}
	if !sess.EndedAt.IsZero() {
		tr.DurationMs = sess.EndedAt.Sub(sess.StartedAt).Milliseconds()
	}

	switch sess.State {
	case session.StateError:
		tr.Status = StatusError
	case session.StateTimedOut:
		tr.Status = StatusTimeout
	default:
		if vec.Success() {
			tr.Status = StatusSuccess
		} else {
			tr.Status = StatusFailure
		}
	}
	return tr
}

// NewRunReport assembles a report and computes its digest.
func NewRunReport(runID, participant string, tasks []TaskResult) RunReport {
	r := RunReport{
		RunID:       runID,
		Participant: participant,
		Timestamp:   time.Now().UTC(),
		Tasks:       tasks,
	}
	r.Digest.TotalTasks = len(tasks)

	sum := 0.0
	for _, t := range tasks {
		sum += t.Scores.Total
		switch t.Status {
		case StatusSuccess:
			r.Digest.Succeeded++
		case StatusFailure:
			r.Digest.Failed++
		case StatusTimeout:
			r.Digest.Timeouts++
		case StatusError:
			r.Digest.Errors++
		}
	}
	if len(tasks) > 0 {
		r.Digest.AvgScore = round4(sum / float64(len(tasks)))
	}
	return r
}

// Save writes the report as pretty-printed JSON under dir, creating the
// directory if needed. The filename is derived from the run ID.
func Save(dir string, report RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating results directory: %w", err)
	}

	path := filepath.Join(dir, report.RunID+".json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// DefaultRunID returns a timestamped run identifier.
func DefaultRunID() string {
	return "run-" + time.Now().UTC().Format("20060102T150405Z")
}

func roundVector(v scoring.ScoreVector) scoring.ScoreVector {
	return scoring.ScoreVector{
		Action:     round4(v.Action),
		Argument:   round4(v.Argument),
		Efficiency: round4(v.Efficiency),
		Total:      round4(v.Total),
	}
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
