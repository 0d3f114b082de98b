package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AX-AIAgents/AgentX/internal/protocol"
	"github.com/AX-AIAgents/AgentX/internal/results"
	"github.com/AX-AIAgents/AgentX/internal/scoring"
	"github.com/AX-AIAgents/AgentX/internal/session"
	"github.com/AX-AIAgents/AgentX/internal/toolhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	req    EvalRequest
	report results.RunReport
	err    error
}

func (r *stubRunner) Evaluate(_ context.Context, req EvalRequest) (results.RunReport, error) {
	r.req = req
	return r.report, r.err
}

func newTestServer(t *testing.T, runner Runner, toolProviderURL string) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Config{ToolProviderURL: toolProviderURL}, session.NewStore(), results.NewFileStore(t.TempDir()), runner)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return resp.StatusCode, m
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil, "")

	status, body := getJSON(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	components, ok := body["components"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "disabled", components["tool_provider"])
}

func TestAgentCard(t *testing.T) {
	_, ts := newTestServer(t, nil, "")

	status, body := getJSON(t, ts.URL+"/.well-known/agent-card.json")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "agentx-evaluator", body["name"])
}

func TestReset(t *testing.T) {
	s, ts := newTestServer(t, nil, "")
	s.sessions.Create("t1", 5)
	require.Equal(t, 1, s.sessions.Len())

	resp, err := http.Post(ts.URL+"/reset", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Equal(t, 0, s.sessions.Len())
}

func kickoffBody(t *testing.T, text string) []byte {
	t.Helper()
	data, err := protocol.EncodeMessageSend("req-1", protocol.NewTextMessage(protocol.RoleEvaluator, text))
	require.NoError(t, err)
	return data
}

func TestKickoff(t *testing.T) {
	runner := &stubRunner{report: results.NewRunReport("run-1", "", []results.TaskResult{
		{TaskID: "t1", Status: results.StatusSuccess, Scores: scoring.ScoreVector{Total: 0.9}},
	})}
	_, ts := newTestServer(t, runner, "")

	text := `Please evaluate. <task_config>{"participant_url":"http://localhost:9100","task_file":"tasks.jsonl","max_turns":8,"tasks":[0,2]}</task_config>`
	resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewReader(kickoffBody(t, text)))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "http://localhost:9100", runner.req.ParticipantURL)
	assert.Equal(t, "tasks.jsonl", runner.req.TaskFile)
	assert.Equal(t, 8, runner.req.MaxTurns)
	assert.Equal(t, []int{0, 2}, runner.req.Tasks)

	var raw bytes.Buffer
	_, err = raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	reply, err := protocol.DecodeMessageResponse(raw.Bytes())
	require.NoError(t, err)
	assert.Contains(t, reply.Text(), "1/1 succeeded")
	assert.Contains(t, reply.Text(), "t1: success")
}

func TestKickoffMissingConfig(t *testing.T) {
	_, ts := newTestServer(t, &stubRunner{}, "")

	resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewReader(kickoffBody(t, "no config here")))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var body struct {
		Error *protocol.RPCError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Error)
	assert.Equal(t, protocol.CodeInvalidParams, body.Error.Code)
}

func TestKickoffBadEnvelope(t *testing.T) {
	_, ts := newTestServer(t, &stubRunner{}, "")

	resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewReader([]byte(`{"jsonrpc":"1.0"}`)))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var body struct {
		Error *protocol.RPCError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Error)
	assert.Equal(t, protocol.CodeInvalidRequest, body.Error.Code)
}

func TestParseTaskConfig(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"valid", `<task_config>{"participant_url":"http://x","task_file":"t.jsonl"}</task_config>`, false},
		{"no block", "just text", true},
		{"bad json", `<task_config>{nope}</task_config>`, true},
		{"missing participant", `<task_config>{"task_file":"t.jsonl"}</task_config>`, true},
		{"missing task file", `<task_config>{"participant_url":"http://x"}</task_config>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTaskConfig(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunsEndpoints(t *testing.T) {
	dir := t.TempDir()
	report := results.NewRunReport("run-9", "", []results.TaskResult{
		{TaskID: "t1", Status: results.StatusSuccess, Scores: scoring.ScoreVector{Total: 1.0}},
	})
	_, err := results.Save(dir, report)
	require.NoError(t, err)

	s, err := New(Config{}, session.NewStore(), results.NewFileStore(dir), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	status, body := getJSON(t, ts.URL+"/api/runs/run-9")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "run-9", body["run_id"])

	status, _ = getJSON(t, ts.URL+"/api/runs/none")
	assert.Equal(t, http.StatusNotFound, status)

	status, summary := getJSON(t, ts.URL+"/api/summary")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), summary["total_runs"])
}

func TestSessionEndpoint(t *testing.T) {
	s, ts := newTestServer(t, nil, "")
	id := s.sessions.Create("t1", 5)

	status, body := getJSON(t, ts.URL+"/api/sessions/"+id)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "t1", body["task_id"])
	assert.Equal(t, "INIT", body["state"])

	status, _ = getJSON(t, ts.URL+"/api/sessions/unknown")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestToolProxy(t *testing.T) {
	provider := toolhost.NewProvider()
	require.NoError(t, provider.RegisterDomain("search"))
	upstream := httptest.NewServer(toolhost.Routes(provider, nil))
	defer upstream.Close()

	_, ts := newTestServer(t, nil, upstream.URL)

	status, body := getJSON(t, ts.URL+"/mcp/tools")
	assert.Equal(t, http.StatusOK, status)
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)

	// Composite health now reflects the live provider.
	status, health := getJSON(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	components := health["components"].(map[string]any)
	assert.Equal(t, "ok", components["tool_provider"])
}
