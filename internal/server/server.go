// Package server exposes the evaluator over HTTP: an agent card, a
// JSON-RPC kickoff endpoint, run inspection routes, and a reverse proxy in
// front of the tool provider.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/results"
	"github.com/AX-AIAgents/AgentX/internal/session"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

// Runner starts an evaluation run on behalf of a kickoff request.
type Runner interface {
	Evaluate(ctx context.Context, req EvalRequest) (results.RunReport, error)
}

// EvalRequest is the task configuration a kickoff message carries.
type EvalRequest struct {
	ParticipantURL string `mapstructure:"participant_url"`
	TaskFile       string `mapstructure:"task_file"`
	Tasks          []int  `mapstructure:"tasks"`
	MaxTurns       int    `mapstructure:"max_turns"`
}

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	ToolProviderURL string
	Logger          *slog.Logger
}

// Server wraps the HTTP server with its collaborators.
type Server struct {
	cfg      Config
	srv      *http.Server
	logger   *slog.Logger
	sessions *session.Store
	runs     results.RunStore
	runner   Runner
}

// New creates the evaluator HTTP server.
func New(cfg Config, sessions *session.Store, runs results.RunStore, runner Runner) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 9000
	}

	mux := http.NewServeMux()
	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: sessions,
		runs:     runs,
		runner:   runner,
		srv: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if err := s.registerRoutes(mux); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) error {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /.well-known/agent-card.json", s.handleAgentCard)
	mux.HandleFunc("POST /{$}", s.handleKickoff)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRunDetail)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSession)

	if s.cfg.ToolProviderURL != "" {
		proxy, err := toolProxy(s.cfg.ToolProviderURL)
		if err != nil {
			return fmt.Errorf("configuring tool proxy: %w", err)
		}
		mux.Handle("/mcp/", http.StripPrefix("/mcp", proxy))
	}
	return nil
}

// toolProxy forwards requests to the tool provider so participants reach
// tools through the evaluator's address.
func toolProxy(target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
		writeError(w, http.StatusBadGateway, "tool provider unreachable: "+err.Error())
	}
	return proxy, nil
}

// ListenAndServe starts the server and shuts it down gracefully when ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("evaluator server starting", "address", s.srv.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down evaluator server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("evaluator server shutdown error", "error", err)
		}
	}()

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("evaluator server error: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// probeToolProvider reports the tool provider's health for the composite
// health endpoint.
func (s *Server) probeToolProvider(ctx context.Context) string {
	if s.cfg.ToolProviderURL == "" {
		return "disabled"
	}
	target := strings.TrimSuffix(s.cfg.ToolProviderURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "error"
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return "unhealthy"
	}
	return "ok"
}
