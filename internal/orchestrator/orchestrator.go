// Package orchestrator drives the evaluator side of an evaluation session:
// it sends the task, relays tool results, and advances the session state
// machine until a terminal state is reached, then scores the trace.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/gateway"
	"github.com/AX-AIAgents/AgentX/internal/protocol"
	"github.com/AX-AIAgents/AgentX/internal/scoring"
	"github.com/AX-AIAgents/AgentX/internal/session"
	"github.com/AX-AIAgents/AgentX/internal/task"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxTurns bounds a session when the caller does not say otherwise.
const DefaultMaxTurns = 20

// DefaultWallClock bounds a session's total duration.
const DefaultWallClock = 5 * time.Minute

// Outcome is the result of one finished session. The score is always
// computed, even when the session ended in an error state, so partial
// progress is visible in reports.
type Outcome struct {
	Session   session.Session
	Score     scoring.ScoreVector
	Breakdown scoring.Breakdown
}

// Orchestrator runs evaluation sessions against one participant.
type Orchestrator struct {
	participant Participant
	tools       gateway.Invoker
	store       *session.Store
	events      session.Logger
	logger      *slog.Logger
	complete    CompletionPredicate
	maxTurns    int
	wallClock   time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxTurns sets the per-session turn budget.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithWallClock sets the per-session wall clock budget. Zero disables it.
func WithWallClock(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.wallClock = d
	}
}

// WithCompletionPredicate replaces the default keyword predicate.
func WithCompletionPredicate(p CompletionPredicate) Option {
	return func(o *Orchestrator) {
		o.complete = p
	}
}

// WithEventLogger attaches a session event log.
func WithEventLogger(l session.Logger) Option {
	return func(o *Orchestrator) {
		o.events = l
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an orchestrator bound to one participant and one tool
// gateway. The store may be shared with a serving surface for inspection.
func New(participant Participant, tools gateway.Invoker, store *session.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		participant: participant,
		tools:       tools,
		store:       store,
		events:      session.NopLogger{},
		logger:      slog.Default(),
		complete:    KeywordCompletion,
		maxTurns:    DefaultMaxTurns,
		wallClock:   DefaultWallClock,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one full session for the task and returns its outcome. The
// returned error is non-nil only for orchestrator-internal faults; sessions
// that end in ERROR or TIMED_OUT still produce an outcome with a score over
// whatever trace accumulated.
func (o *Orchestrator) Run(ctx context.Context, def task.Definition) (Outcome, error) {
	if o.wallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.wallClock)
		defer cancel()
	}

	id := o.store.Create(def.TaskID, o.maxTurns)
	start := time.Now()

	o.logger.Info("session started", "session", id, "task", def.TaskID, "max_turns", o.maxTurns)
	o.logEvent(session.EventSessionStart, session.SessionStartData(id, def.TaskID, "", o.maxTurns))

	o.runLoop(ctx, id, def)

	snap, err := o.store.Get(id)
	if err != nil {
		return Outcome{}, fmt.Errorf("reading finished session: %w", err)
	}

	vec, bd := scoring.ScoreWithBreakdown(snap.Trace, def.Criteria)

	o.logger.Info("session finished",
		"session", id,
		"state", string(snap.State),
		"reason", string(snap.Reason),
		"turns", snap.TurnCount,
		"score", vec.Total)
	o.logEvent(session.EventSessionEnd,
		session.SessionEndData(id, snap.State, snap.Reason, snap.TurnCount, time.Since(start).Milliseconds()))

	return Outcome{Session: snap, Score: vec, Breakdown: bd}, nil
}

// runLoop advances the session until a terminal state. Every exit path
// records exactly one Finish; the first terminal state sticks.
func (o *Orchestrator) runLoop(ctx context.Context, id string, def task.Definition) {
	taskMsg := protocol.NewTextMessage(protocol.RoleEvaluator, def.Prompt())

	if err := o.store.Transition(id, session.StateTaskSent); err != nil {
		o.finish(id, session.StateError, session.ReasonProtocol, err.Error())
		return
	}
	o.appendHistory(id, taskMsg)

	outgoing := taskMsg
	prevSig := ""

	for {
		if err := o.store.Transition(id, session.StateAwaitingResponse); err != nil {
			o.finish(id, session.StateError, session.ReasonProtocol, err.Error())
			return
		}

		reply, err := o.participant.Send(ctx, outgoing)
		if err != nil {
			o.finishOnSendError(id, err)
			return
		}

		turn, err := o.store.IncrementTurn(id)
		if err != nil {
			// The turn budget forces completion; TIMED_OUT is reserved for
			// the wall clock.
			o.finish(id, session.StateComplete, session.ReasonTurnBudget, "")
			return
		}
		o.appendHistory(id, reply)

		toolCalls := reply.ToolCalls()
		text := reply.Text()
		o.logEvent(session.EventTurn, session.TurnData(id, turn, len(toolCalls), len(text)))

		// A participant never sends tool results; a result part that
		// references a call id missing from the trace is a protocol fault.
		if badID, ok := o.strayToolResult(id, reply); ok {
			o.finish(id, session.StateError, session.ReasonProtocol,
				fmt.Sprintf("tool result references unknown call id %q", badID))
			return
		}

		if o.complete(text) {
			o.finish(id, session.StateComplete, session.ReasonOrganic, "")
			return
		}

		if len(toolCalls) == 0 {
			o.finish(id, session.StateComplete, session.ReasonStalled, "")
			return
		}

		if err := o.store.Transition(id, session.StateDispatchingTools); err != nil {
			o.finish(id, session.StateError, session.ReasonProtocol, err.Error())
			return
		}

		results, err := o.dispatch(ctx, id, turn, toolCalls)
		if err != nil {
			o.finishOnSendError(id, err)
			return
		}

		// A turn repeating the previous turn's tool sequence is a loop. The
		// repeated turn's calls are dispatched and recorded before breaking
		// so the trace reflects what actually ran.
		sig := turnSignature(toolCalls)
		if prevSig != "" && sig == prevSig {
			o.finish(id, session.StateComplete, session.ReasonRepeatedTurn, "")
			return
		}
		prevSig = sig

		outgoing = protocol.Message{Role: protocol.RoleEvaluator, Parts: results}
		o.appendHistory(id, outgoing)
	}
}

// dispatch invokes all tool calls of one turn concurrently and returns the
// result parts in call order.
func (o *Orchestrator) dispatch(ctx context.Context, id string, turn int, calls []protocol.ToolCallPart) ([]protocol.Part, error) {
	invocations := make([]gateway.Invocation, len(calls))
	callIDs := make([]string, len(calls))
	durations := make([]int64, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		callID := call.ID
		if callID == "" {
			callID = uuid.NewString()
		}
		callIDs[i] = callID

		g.Go(func() error {
			startedAt := time.Now()
			invocations[i] = o.tools.Invoke(gctx, call.Name, call.Arguments)
			durations[i] = time.Since(startedAt).Milliseconds()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parts := make([]protocol.Part, 0, len(calls))
	for i, inv := range invocations {
		rec := session.ToolCallRecord{
			CallID:    callIDs[i],
			ToolName:  inv.Tool,
			Arguments: inv.Arguments,
			Result:    inv.Result,
			TurnIndex: turn,
			Timestamp: time.Now().UTC(),
		}
		if inv.Failed() {
			rec.Error = inv.ErrorMessage()
			rec.IsError = true
		}
		if err := o.store.Append(id, rec); err != nil {
			return nil, err
		}
		o.logEvent(session.EventToolDispatch,
			session.ToolDispatchData(id, rec.CallID, rec.ToolName, rec.IsError, durations[i]))
		o.logger.Debug("tool dispatched", "session", id, "tool", rec.ToolName, "call", rec.CallID, "failed", rec.IsError)

		part := protocol.ToolResultPart{ToolCallID: rec.CallID}
		if rec.IsError {
			part.Error = rec.Error
			part.IsError = true
		} else {
			part.Result = rec.Result
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// strayToolResult reports the first tool result part in a participant
// message whose call id does not appear in the session trace.
func (o *Orchestrator) strayToolResult(id string, msg protocol.Message) (string, bool) {
	snap, err := o.store.Get(id)
	if err != nil {
		return "", false
	}
	for _, part := range msg.Parts {
		if tr, ok := part.(protocol.ToolResultPart); ok {
			if !snap.HasCall(tr.ToolCallID) {
				return tr.ToolCallID, true
			}
		}
	}
	return "", false
}

// finishOnSendError maps a participant send failure to a terminal state.
func (o *Orchestrator) finishOnSendError(id string, err error) {
	var tErr *TransportError
	var pErr *protocol.ProtocolError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		o.finish(id, session.StateTimedOut, session.ReasonWallClock, "")
	case errors.Is(err, context.Canceled):
		o.finish(id, session.StateError, session.ReasonTransport, "canceled")
	case errors.As(err, &pErr):
		o.finish(id, session.StateError, session.ReasonProtocol, err.Error())
	case errors.As(err, &tErr):
		o.finish(id, session.StateError, session.ReasonTransport, err.Error())
	default:
		o.finish(id, session.StateError, session.ReasonTransport, err.Error())
	}
}

func (o *Orchestrator) finish(id string, state session.State, reason session.CompletionReason, errMsg string) {
	if err := o.store.Finish(id, state, reason, errMsg); err != nil {
		o.logger.Warn("finishing session", "session", id, "error", err)
	}
	if errMsg != "" {
		o.logEvent(session.EventError, session.ErrorData(errMsg, map[string]any{"session_id": id}))
	}
}

func (o *Orchestrator) appendHistory(id string, msg protocol.Message) {
	if err := o.store.AppendHistory(id, msg); err != nil {
		o.logger.Warn("appending history", "session", id, "error", err)
	}
}

func (o *Orchestrator) logEvent(t session.EventType, data map[string]any) {
	if err := o.events.Log(session.NewEvent(t, data)); err != nil {
		o.logger.Warn("writing session event", "error", err)
	}
}

// turnSignature is the ordered tool-name signature of one turn. Prose and
// arguments are deliberately excluded: an agent re-issuing the same tool
// sequence is looping even when it varies the wording around it.
func turnSignature(calls []protocol.ToolCallPart) string {
	names := make([]string, len(calls))
	for i, call := range calls {
		names[i] = call.Name
	}
	return strings.Join(names, "|")
}
