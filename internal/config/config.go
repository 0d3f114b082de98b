// Package config provides the scenario configuration loaded from an
// agentx.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values for scenario configuration. Load references them and no
// other code should duplicate them.
const (
	DefaultServerPort       = 9000
	DefaultToolProviderPort = 9001

	DefaultMaxTurns         = 20
	DefaultWallClockSeconds = 300
	DefaultInvokeTimeoutSec = 8

	DefaultResultsDir    = "results/"
	DefaultSessionLogDir = "sessions/"
)

// ServerConfig holds the evaluator HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// ToolProviderConfig holds the mock tool provider settings. URL, when set,
// points at an external provider instead of the built-in one.
type ToolProviderConfig struct {
	Port    int      `yaml:"port,omitempty"`
	URL     string   `yaml:"url,omitempty"`
	Domains []string `yaml:"domains,omitempty"`
}

// ParticipantConfig holds the agent under evaluation.
type ParticipantConfig struct {
	URL string `yaml:"url,omitempty"`
}

// RunConfig holds per-run execution settings.
type RunConfig struct {
	TaskFile         string `yaml:"task_file,omitempty"`
	Tasks            []int  `yaml:"tasks,omitempty"`
	MaxTurns         int    `yaml:"max_turns,omitempty"`
	WallClockSeconds int    `yaml:"wall_clock_seconds,omitempty"`
	InvokeTimeoutSec int    `yaml:"invoke_timeout_seconds,omitempty"`
	ResultsDir       string `yaml:"results_dir,omitempty"`
	SessionLogDir    string `yaml:"session_log_dir,omitempty"`
	SessionLog       bool   `yaml:"session_log,omitempty"`
}

// Scenario is the top-level configuration.
type Scenario struct {
	Server       ServerConfig       `yaml:"server,omitempty"`
	ToolProvider ToolProviderConfig `yaml:"tool_provider,omitempty"`
	Participant  ParticipantConfig  `yaml:"participant,omitempty"`
	Run          RunConfig          `yaml:"run,omitempty"`
}

// New returns a Scenario with all defaults populated.
func New() *Scenario {
	return &Scenario{
		Server:       ServerConfig{Port: DefaultServerPort},
		ToolProvider: ToolProviderConfig{Port: DefaultToolProviderPort},
		Run: RunConfig{
			MaxTurns:         DefaultMaxTurns,
			WallClockSeconds: DefaultWallClockSeconds,
			InvokeTimeoutSec: DefaultInvokeTimeoutSec,
			ResultsDir:       DefaultResultsDir,
			SessionLogDir:    DefaultSessionLogDir,
		},
	}
}

// Load reads a scenario file and fills missing fields with defaults. A
// missing file returns defaults with a nil error so every command works
// without configuration.
func Load(path string) (*Scenario, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	var fileCfg Scenario
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}

	merge(cfg, &fileCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", path, err)
	}
	return cfg, nil
}

// merge copies non-zero file values onto the defaults.
func merge(dst, src *Scenario) {
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.ToolProvider.Port != 0 {
		dst.ToolProvider.Port = src.ToolProvider.Port
	}
	if src.ToolProvider.URL != "" {
		dst.ToolProvider.URL = src.ToolProvider.URL
	}
	if len(src.ToolProvider.Domains) > 0 {
		dst.ToolProvider.Domains = src.ToolProvider.Domains
	}
	if src.Participant.URL != "" {
		dst.Participant.URL = src.Participant.URL
	}
	if src.Run.TaskFile != "" {
		dst.Run.TaskFile = src.Run.TaskFile
	}
	if len(src.Run.Tasks) > 0 {
		dst.Run.Tasks = src.Run.Tasks
	}
	if src.Run.MaxTurns != 0 {
		dst.Run.MaxTurns = src.Run.MaxTurns
	}
	if src.Run.WallClockSeconds != 0 {
		dst.Run.WallClockSeconds = src.Run.WallClockSeconds
	}
	if src.Run.InvokeTimeoutSec != 0 {
		dst.Run.InvokeTimeoutSec = src.Run.InvokeTimeoutSec
	}
	if src.Run.ResultsDir != "" {
		dst.Run.ResultsDir = src.Run.ResultsDir
	}
	if src.Run.SessionLogDir != "" {
		dst.Run.SessionLogDir = src.Run.SessionLogDir
	}
	if src.Run.SessionLog {
		dst.Run.SessionLog = true
	}
}

// Validate rejects scenarios that could not run.
func (s *Scenario) Validate() error {
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", s.Server.Port)
	}
	if s.ToolProvider.Port < 0 || s.ToolProvider.Port > 65535 {
		return fmt.Errorf("tool_provider.port %d is out of range", s.ToolProvider.Port)
	}
	if s.Run.MaxTurns < 1 {
		return fmt.Errorf("run.max_turns must be at least 1, got %d", s.Run.MaxTurns)
	}
	if s.Run.WallClockSeconds < 1 {
		return fmt.Errorf("run.wall_clock_seconds must be at least 1, got %d", s.Run.WallClockSeconds)
	}
	for _, idx := range s.Run.Tasks {
		if idx < 0 {
			return fmt.Errorf("run.tasks contains negative index %d", idx)
		}
	}
	return nil
}

// ToolProviderBase returns the URL the evaluator should use to reach the
// tool provider.
func (s *Scenario) ToolProviderBase() string {
	if s.ToolProvider.URL != "" {
		return s.ToolProvider.URL
	}
	return fmt.Sprintf("http://127.0.0.1:%d", s.ToolProvider.Port)
}
