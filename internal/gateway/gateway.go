// Package gateway provides a uniform, timeout-bounded indirection over one
// or more tool providers. Every invocation, success or failure, is reported
// back with the exact arguments that were transmitted, since those are what
// the scoring engine checks.
package gateway

import (
	"context"
	"fmt"
)

// ToolSchema describes one discoverable tool.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ErrorKind classifies gateway-level invocation failures.
type ErrorKind string

const (
	ErrNotFound            ErrorKind = "not_found"
	ErrInvalidArguments    ErrorKind = "invalid_arguments"
	ErrUpstreamTimeout     ErrorKind = "upstream_timeout"
	ErrUpstreamUnavailable ErrorKind = "upstream_unavailable"
)

// ToolError is a gateway-level invocation failure. It is recoverable from
// the session's perspective: the orchestrator records it and relays it to
// the participant as an error tool result.
type ToolError struct {
	Kind   ErrorKind
	Tool   string
	Detail string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %s: %s", e.Tool, e.Kind, e.Detail)
}

// Invocation is the full record of one tool call through the gateway.
// Arguments always holds what was actually sent upstream, not what the
// participant stated. Exactly one of Result, ErrorText, or Err is
// meaningful: Err for gateway failures, ErrorText for errors the tool
// itself reported, Result otherwise.
type Invocation struct {
	Tool      string
	Arguments map[string]any
	Result    any
	ErrorText string
	Err       *ToolError
}

// Failed reports whether the invocation produced anything other than a
// successful result.
func (inv Invocation) Failed() bool {
	return inv.Err != nil || inv.ErrorText != ""
}

// ErrorMessage renders the failure for relay to the participant.
func (inv Invocation) ErrorMessage() string {
	if inv.Err != nil {
		return inv.Err.Error()
	}
	return inv.ErrorText
}

// Invoker is the tool invocation contract the orchestrator depends on.
// Implementations must be safe for concurrent use by many sessions; the
// gateway holds no session-affinity state.
type Invoker interface {
	// Discover lists the tools the provider exposes.
	Discover(ctx context.Context) ([]ToolSchema, error)

	// Invoke calls a tool by name. Failures are reported inside the
	// returned Invocation, never as a panic or a hung call: the invocation
	// resolves within the gateway's timeout bound.
	Invoke(ctx context.Context, name string, args map[string]any) Invocation
}
