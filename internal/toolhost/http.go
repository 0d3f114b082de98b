package toolhost

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type callRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type taskRequest struct {
	Task string `json:"task"`
}

// Routes returns the provider's HTTP surface.
func Routes(p *Provider, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tools": p.Tools()})
	})

	mux.HandleFunc("POST /tools/call", func(w http.ResponseWriter, r *http.Request) {
		var req callRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid call payload: "+err.Error())
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "tool name is required")
			return
		}

		result, found, err := p.Call(req.Name, req.Arguments)
		if !found {
			writeError(w, http.StatusNotFound, "unknown tool: "+req.Name)
			return
		}
		if err != nil {
			// Tool-level failure: HTTP 200 with an error payload so the
			// session continues.
			logger.Debug("tool reported error", "tool", req.Name, "error", err)
			writeJSON(w, http.StatusOK, map[string]any{"error": err.Error()})
			return
		}
		logger.Debug("tool called", "tool", req.Name)
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
	})

	mux.HandleFunc("POST /reset", func(w http.ResponseWriter, _ *http.Request) {
		ts := p.Reset()
		logger.Info("tool provider reset")
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": ts.Format(time.RFC3339),
		})
	})

	mux.HandleFunc("GET /state", func(w http.ResponseWriter, _ *http.Request) {
		calls := p.Calls()
		if calls == nil {
			calls = []CallRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"task":  p.Task(),
			"calls": calls,
		})
	})

	mux.HandleFunc("POST /task", func(w http.ResponseWriter, r *http.Request) {
		var req taskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid task payload: "+err.Error())
			return
		}
		p.SetTask(req.Task)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /task", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"task": p.Task()})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
