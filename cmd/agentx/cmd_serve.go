package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/config"
	"github.com/AX-AIAgents/AgentX/internal/gateway"
	"github.com/AX-AIAgents/AgentX/internal/orchestrator"
	"github.com/AX-AIAgents/AgentX/internal/results"
	"github.com/AX-AIAgents/AgentX/internal/server"
	"github.com/AX-AIAgents/AgentX/internal/session"
	"github.com/AX-AIAgents/AgentX/internal/task"
	"github.com/AX-AIAgents/AgentX/internal/toolhost"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	var (
		configPath string
		port       int
		toolsPort  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the evaluator server and the built-in tool provider",
		Long: `Start the evaluator server and the built-in tool provider.

The evaluator server publishes an agent card, accepts JSON-RPC kickoff
messages carrying a task configuration, proxies tool traffic at /mcp/, and
exposes run and session inspection endpoints. Both servers shut down
gracefully on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if toolsPort > 0 {
				cfg.ToolProvider.Port = toolsPort
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentx.yaml", "Scenario configuration file")
	cmd.Flags().IntVar(&port, "port", 0, "Evaluator server port")
	cmd.Flags().IntVar(&toolsPort, "tools-port", 0, "Tool provider port")

	return cmd
}

func serve(ctx context.Context, cfg *config.Scenario) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	sessions := session.NewStore()
	runs := results.NewFileStore(cfg.Run.ResultsDir)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.ToolProvider.URL == "" {
		provider := toolhost.NewProvider()
		domains := cfg.ToolProvider.Domains
		if len(domains) == 0 {
			domains = toolhost.Domains()
		}
		for _, d := range domains {
			if err := provider.RegisterDomain(d); err != nil {
				return err
			}
		}

		addr := fmt.Sprintf("127.0.0.1:%d", cfg.ToolProvider.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("starting tool provider on %s: %w", addr, err)
		}
		srv := &http.Server{
			Handler:           toolhost.Routes(provider, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			logger.Info("tool provider started", "address", addr, "domains", domains)
			if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	runner := &evalRunner{cfg: cfg, sessions: sessions, runs: runs, logger: logger}
	s, err := server.New(server.Config{
		Port:            cfg.Server.Port,
		ToolProviderURL: cfg.ToolProviderBase(),
		Logger:          logger,
	}, sessions, runs, runner)
	if err != nil {
		return err
	}
	g.Go(func() error {
		return s.ListenAndServe(gctx)
	})

	return g.Wait()
}

// evalRunner runs evaluations on behalf of kickoff requests.
type evalRunner struct {
	cfg      *config.Scenario
	sessions *session.Store
	runs     *results.FileStore
	logger   *slog.Logger
}

func (r *evalRunner) Evaluate(ctx context.Context, req server.EvalRequest) (results.RunReport, error) {
	defs, err := task.Load(req.TaskFile)
	if err != nil {
		return results.RunReport{}, err
	}
	if len(req.Tasks) > 0 {
		defs, err = task.Select(defs, req.Tasks)
		if err != nil {
			return results.RunReport{}, err
		}
	}

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = r.cfg.Run.MaxTurns
	}

	gw := gateway.NewHTTPGateway(r.cfg.ToolProviderBase(),
		gateway.WithInvokeTimeout(time.Duration(r.cfg.Run.InvokeTimeoutSec)*time.Second),
		gateway.WithLogger(r.logger))
	if _, err := gw.Discover(ctx); err != nil {
		return results.RunReport{}, fmt.Errorf("tool provider is unreachable: %w", err)
	}

	client := orchestrator.NewClient(req.ParticipantURL)
	if _, err := client.Connect(ctx); err != nil {
		return results.RunReport{}, fmt.Errorf("participant is unreachable: %w", err)
	}

	orch := orchestrator.New(client, gw, r.sessions,
		orchestrator.WithMaxTurns(maxTurns),
		orchestrator.WithWallClock(time.Duration(r.cfg.Run.WallClockSeconds)*time.Second),
		orchestrator.WithLogger(r.logger))

	var taskResults []results.TaskResult
	for _, def := range defs {
		outcome, err := orch.Run(ctx, def)
		if err != nil {
			return results.RunReport{}, err
		}
		taskResults = append(taskResults, results.NewTaskResult(outcome.Session, outcome.Score, outcome.Breakdown))
	}

	report := results.NewRunReport(results.DefaultRunID(), req.ParticipantURL, taskResults)
	if _, err := results.Save(r.cfg.Run.ResultsDir, report); err != nil {
		return results.RunReport{}, err
	}
	if err := r.runs.Reload(); err != nil {
		r.logger.Warn("reloading run store", "error", err)
	}
	return report, nil
}
