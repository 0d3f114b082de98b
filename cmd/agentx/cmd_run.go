package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/config"
	"github.com/AX-AIAgents/AgentX/internal/gateway"
	"github.com/AX-AIAgents/AgentX/internal/orchestrator"
	"github.com/AX-AIAgents/AgentX/internal/results"
	"github.com/AX-AIAgents/AgentX/internal/session"
	"github.com/AX-AIAgents/AgentX/internal/task"
	"github.com/AX-AIAgents/AgentX/internal/toolhost"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var (
		configPath  string
		taskFile    string
		participant string
		taskIndices []int
		maxTurns    int
		outputDir   string
		sessionLog  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run evaluation tasks against a participant agent",
		Long: `Run evaluation tasks against a participant agent.

Tasks are read from a JSONL file, one task per line. Each task is driven
through a fresh session: the task prompt goes out, tool calls come back and
are dispatched through the gateway, and the finished trace is scored.

The built-in tool provider starts automatically unless the scenario file
points at an external one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyRunFlags(cfg, taskFile, participant, taskIndices, maxTurns, outputDir)

			if cfg.Run.TaskFile == "" {
				return fmt.Errorf("a task file is required (--tasks or run.task_file in %s)", configPath)
			}
			if cfg.Participant.URL == "" {
				return fmt.Errorf("a participant URL is required (--participant or participant.url in %s)", configPath)
			}
			if sessionLog {
				cfg.Run.SessionLog = true
			}

			return runEvaluation(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentx.yaml", "Scenario configuration file")
	cmd.Flags().StringVarP(&taskFile, "tasks", "t", "", "Task definition file (JSONL)")
	cmd.Flags().StringVarP(&participant, "participant", "p", "", "Participant agent base URL")
	cmd.Flags().IntSliceVar(&taskIndices, "task", nil, "Run only these task indices (repeatable)")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "Per-session turn budget")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the run report")
	cmd.Flags().BoolVar(&sessionLog, "session-log", false, "Write a session event log")

	return cmd
}

func applyRunFlags(cfg *config.Scenario, taskFile, participant string, taskIndices []int, maxTurns int, outputDir string) {
	if taskFile != "" {
		cfg.Run.TaskFile = taskFile
	}
	if participant != "" {
		cfg.Participant.URL = participant
	}
	if len(taskIndices) > 0 {
		cfg.Run.Tasks = taskIndices
	}
	if maxTurns > 0 {
		cfg.Run.MaxTurns = maxTurns
	}
	if outputDir != "" {
		cfg.Run.ResultsDir = outputDir
	}
}

func runEvaluation(ctx context.Context, cfg *config.Scenario) error {
	logger := slog.Default()

	defs, err := task.Load(cfg.Run.TaskFile)
	if err != nil {
		return err
	}
	if len(cfg.Run.Tasks) > 0 {
		defs, err = task.Select(defs, cfg.Run.Tasks)
		if err != nil {
			return err
		}
	}
	if len(defs) == 0 {
		return fmt.Errorf("no tasks in %s", cfg.Run.TaskFile)
	}

	// Built-in tool provider unless an external one is configured.
	var provider *toolhost.Provider
	if cfg.ToolProvider.URL == "" {
		provider, err = startToolProvider(ctx, cfg, logger)
		if err != nil {
			return err
		}
	}

	gw := gateway.NewHTTPGateway(cfg.ToolProviderBase(),
		gateway.WithInvokeTimeout(time.Duration(cfg.Run.InvokeTimeoutSec)*time.Second),
		gateway.WithLogger(logger))
	if _, err := gw.Discover(ctx); err != nil {
		return fmt.Errorf("tool provider is unreachable: %w", err)
	}

	client := orchestrator.NewClient(cfg.Participant.URL)
	card, err := client.Connect(ctx)
	if err != nil {
		return fmt.Errorf("participant is unreachable: %w", err)
	}
	logger.Info("connected to participant", "name", card.Name, "url", cfg.Participant.URL)

	events, closeEvents, err := openEventLog(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	store := session.NewStore()
	orch := orchestrator.New(client, gw, store,
		orchestrator.WithMaxTurns(cfg.Run.MaxTurns),
		orchestrator.WithWallClock(time.Duration(cfg.Run.WallClockSeconds)*time.Second),
		orchestrator.WithEventLogger(events),
		orchestrator.WithLogger(logger))

	var taskResults []results.TaskResult
	for _, def := range defs {
		if provider != nil {
			provider.Reset()
			provider.SetTask(def.Instruction)
		}

		outcome, err := orch.Run(ctx, def)
		if err != nil {
			return err
		}
		taskResults = append(taskResults, results.NewTaskResult(outcome.Session, outcome.Score, outcome.Breakdown))
	}

	report := results.NewRunReport(results.DefaultRunID(), cfg.Participant.URL, taskResults)
	path, err := results.Save(cfg.Run.ResultsDir, report)
	if err != nil {
		return err
	}

	printRunSummary(os.Stdout, report, card.Name, path)

	if failed := report.Digest.TotalTasks - report.Digest.Succeeded; failed > 0 {
		return &EvalFailureError{Message: fmt.Sprintf("%d of %d tasks did not succeed", failed, report.Digest.TotalTasks)}
	}
	return nil
}

// startToolProvider serves the built-in tool provider until ctx ends.
func startToolProvider(ctx context.Context, cfg *config.Scenario, logger *slog.Logger) (*toolhost.Provider, error) {
	provider := toolhost.NewProvider()
	domains := cfg.ToolProvider.Domains
	if len(domains) == 0 {
		domains = toolhost.Domains()
	}
	for _, d := range domains {
		if err := provider.RegisterDomain(d); err != nil {
			return nil, err
		}
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.ToolProvider.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("starting tool provider on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           toolhost.Routes(provider, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("tool provider server error", "error", err)
		}
	}()

	logger.Info("tool provider started", "address", addr, "domains", domains)
	return provider, nil
}

func openEventLog(cfg *config.Scenario, logger *slog.Logger) (session.Logger, func(), error) {
	if !cfg.Run.SessionLog {
		return session.NopLogger{}, func() {}, nil
	}
	path := session.DefaultLogPath(cfg.Run.SessionLogDir)
	jl, err := session.NewJSONLogger(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("session log enabled", "path", path)
	return jl, func() {
		jl.Close() //nolint:errcheck
	}, nil
}
