// Package session holds per-task evaluation state: the conversation history
// and the append-only tool call trace, keyed by session ID.
package session

import (
	"time"

	"github.com/AX-AIAgents/AgentX/internal/protocol"
)

// State is the orchestrator-visible lifecycle state of a session.
type State string

const (
	StateInit              State = "INIT"
	StateTaskSent          State = "TASK_SENT"
	StateAwaitingResponse  State = "AWAITING_RESPONSE"
	StateDispatchingTools  State = "DISPATCHING_TOOLS"
	StateComplete          State = "COMPLETE"
	StateTimedOut          State = "TIMED_OUT"
	StateError             State = "ERROR"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateTimedOut || s == StateError
}

// CompletionReason records why a session stopped. Forced completions are
// distinct from organic ones because they affect efficiency interpretation
// downstream.
type CompletionReason string

const (
	ReasonOrganic      CompletionReason = "organic"
	ReasonTurnBudget   CompletionReason = "turn_budget"
	ReasonWallClock    CompletionReason = "wall_clock"
	ReasonStalled      CompletionReason = "stalled"
	ReasonRepeatedTurn CompletionReason = "repeated_turn"
	ReasonProtocol     CompletionReason = "protocol_error"
	ReasonTransport    CompletionReason = "transport_error"
)

// Forced reports whether the session ended for any reason other than the
// participant organically signaling completion.
func (r CompletionReason) Forced() bool {
	return r != ReasonOrganic && r != ""
}

// ToolCallRecord is one append-only trace entry. Never mutated after append.
type ToolCallRecord struct {
	CallID    string         `json:"call_id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	TurnIndex int            `json:"turn_index"`
	Timestamp time.Time      `json:"timestamp"`
}

// Session is the full state of one evaluation run. All mutation goes
// through the Store so concurrent readers observe consistent snapshots;
// exactly one orchestrator writes to a given session.
type Session struct {
	ID        string
	TaskID    string
	State     State
	Reason    CompletionReason
	ErrorMsg  string
	TurnCount int
	MaxTurns  int
	StartedAt time.Time
	EndedAt   time.Time
	Trace     []ToolCallRecord
	History   []protocol.Message
}

// HasCall reports whether callID matches a tool call already in the trace.
func (s *Session) HasCall(callID string) bool {
	for _, rec := range s.Trace {
		if rec.CallID == callID {
			return true
		}
	}
	return false
}

// clone returns a snapshot safe to hand to concurrent readers. Trace and
// History slices are copied; record payloads are treated as immutable.
func (s *Session) clone() Session {
	out := *s
	out.Trace = make([]ToolCallRecord, len(s.Trace))
	copy(out.Trace, s.Trace)
	out.History = make([]protocol.Message, len(s.History))
	copy(out.History, s.History)
	return out
}
