package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/orchestrator"
	"github.com/AX-AIAgents/AgentX/internal/protocol"
	"github.com/AX-AIAgents/AgentX/internal/results"
	"github.com/AX-AIAgents/AgentX/internal/session"
	"github.com/go-viper/mapstructure/v2"
)

const (
	taskConfigOpen  = "<task_config>"
	taskConfigClose = "</task_config>"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"components": map[string]any{
			"sessions":      s.sessions.Len(),
			"tool_provider": s.probeToolProvider(r.Context()),
		},
	})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	ts := s.sessions.Clear()
	s.logger.Info("session store reset")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": ts.Format(time.RFC3339),
	})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orchestrator.AgentCard{
		Name:        "agentx-evaluator",
		Description: "Evaluates tool-using agents against scripted tasks",
		URL:         "http://" + r.Host + "/",
		Version:     Version,
	})
}

// handleKickoff accepts a JSON-RPC message/send whose text carries an
// embedded task configuration, runs the evaluation, and replies with a
// summary message.
func (s *Server) handleKickoff(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, "", protocol.ErrParseError(err.Error()))
		return
	}

	id, msg, err := protocol.DecodeMessageSend(body)
	if err != nil {
		writeRPCError(w, id, protocol.ErrInvalidRequest(err.Error()))
		return
	}

	req, err := parseTaskConfig(msg.Text())
	if err != nil {
		writeRPCError(w, id, protocol.ErrInvalidParams(err.Error()))
		return
	}

	if s.runner == nil {
		writeRPCError(w, id, protocol.ErrInternalError("no evaluation runner configured"))
		return
	}

	s.logger.Info("kickoff received", "participant", req.ParticipantURL, "task_file", req.TaskFile)

	report, err := s.runner.Evaluate(r.Context(), req)
	if err != nil {
		writeRPCError(w, id, protocol.ErrInternalError(err.Error()))
		return
	}

	reply := protocol.NewTextMessage(protocol.RoleEvaluator, summarizeReport(report))
	data, err := protocol.EncodeMessageResponse(id, reply)
	if err != nil {
		writeRPCError(w, id, protocol.ErrInternalError(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck
}

// parseTaskConfig extracts the JSON block between task_config markers and
// decodes it. The message text may carry prose around the block.
func parseTaskConfig(text string) (EvalRequest, error) {
	start := strings.Index(text, taskConfigOpen)
	end := strings.Index(text, taskConfigClose)
	if start < 0 || end < 0 || end < start {
		return EvalRequest{}, errors.New("message does not contain a task_config block")
	}

	raw := strings.TrimSpace(text[start+len(taskConfigOpen) : end])
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return EvalRequest{}, fmt.Errorf("task_config is not valid JSON: %w", err)
	}

	var req EvalRequest
	if err := mapstructure.Decode(payload, &req); err != nil {
		return EvalRequest{}, fmt.Errorf("invalid task_config: %w", err)
	}
	if req.ParticipantURL == "" {
		return EvalRequest{}, errors.New("task_config is missing participant_url")
	}
	if req.TaskFile == "" {
		return EvalRequest{}, errors.New("task_config is missing task_file")
	}
	return req, nil
}

func summarizeReport(report results.RunReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Evaluation %s finished: %d/%d succeeded, avg score %.4f\n",
		report.RunID, report.Digest.Succeeded, report.Digest.TotalTasks, report.Digest.AvgScore)
	for _, t := range report.Tasks {
		fmt.Fprintf(&sb, "- %s: %s (%.4f)\n", t.TaskID, t.Status, t.Scores.Total)
	}
	return sb.String()
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, err := s.runs.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRuns(w http.ResponseWriter, _ *http.Request) {
	runs, err := s.runs.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	detail, err := s.runs.GetRun(id)
	if err != nil {
		if errors.Is(err, results.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.sessions.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         snap.ID,
		"task_id":    snap.TaskID,
		"state":      string(snap.State),
		"reason":     string(snap.Reason),
		"turn_count": snap.TurnCount,
		"max_turns":  snap.MaxTurns,
		"trace":      snap.Trace,
	})
}

func writeRPCError(w http.ResponseWriter, id string, rpcErr *protocol.RPCError) {
	data, err := protocol.EncodeErrorResponse(id, rpcErr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
