package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/protocol"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a session ID does not match any stored session.
var ErrNotFound = errors.New("session not found")

// ErrResetMidTurn is returned when a reset is attempted while the session is
// dispatching tools. Fatal to that session only.
var ErrResetMidTurn = errors.New("cannot reset session mid-turn")

// validTransitions encodes the turn-loop state machine.
var validTransitions = map[State][]State{
	StateInit:             {StateTaskSent, StateError},
	StateTaskSent:         {StateAwaitingResponse, StateError, StateTimedOut},
	StateAwaitingResponse: {StateDispatchingTools, StateComplete, StateError, StateTimedOut},
	StateDispatchingTools: {StateAwaitingResponse, StateComplete, StateError, StateTimedOut},
}

func transitionAllowed(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Store holds every live evaluation session. Lookup isolation is the only
// cross-session synchronization the model requires: sessions own disjoint
// state, and each has exactly one writer.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: map[string]*Session{}}
}

// Create registers a new session in INIT state and returns its ID.
func (st *Store) Create(taskID string, maxTurns int) string {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := uuid.NewString()
	st.sessions[id] = &Session{
		ID:        id,
		TaskID:    taskID,
		State:     StateInit,
		MaxTurns:  maxTurns,
		StartedAt: time.Now().UTC(),
	}
	return id
}

// Get returns a snapshot of the session.
func (st *Store) Get(id string) (Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.clone(), nil
}

// Transition moves the session to the given state, enforcing the state
// machine's allowed edges.
func (st *Store) Transition(id string, to State) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !transitionAllowed(s.State, to) {
		return fmt.Errorf("session %s: invalid transition %s -> %s", id, s.State, to)
	}
	s.State = to
	return nil
}

// Append adds one record to the session's trace. The trace is append-only;
// records are never reordered or rewritten.
func (st *Store) Append(id string, rec ToolCallRecord) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Trace = append(s.Trace, rec)
	return nil
}

// AppendHistory adds one message to the session's conversation history.
func (st *Store) AppendHistory(id string, msg protocol.Message) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.History = append(s.History, msg)
	return nil
}

// IncrementTurn advances the turn counter and returns the new count.
// The count is monotonically non-decreasing and bounded by MaxTurns.
func (st *Store) IncrementTurn(id string) (int, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.TurnCount >= s.MaxTurns {
		return s.TurnCount, fmt.Errorf("session %s: turn budget %d exhausted", id, s.MaxTurns)
	}
	s.TurnCount++
	return s.TurnCount, nil
}

// Finish moves the session into a terminal state with the given reason.
// Unlike Transition it is callable from any non-terminal state, since budget
// and wall-clock enforcement can fire at any point in the loop.
func (st *Store) Finish(id string, state State, reason CompletionReason, errMsg string) error {
	if !state.Terminal() {
		return fmt.Errorf("finish requires a terminal state, got %s", state)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.State.Terminal() {
		return nil // already finished, first terminal state wins
	}
	s.State = state
	s.Reason = reason
	s.ErrorMsg = errMsg
	s.EndedAt = time.Now().UTC()
	return nil
}

// Reset atomically clears the session's trace, history, and turn count and
// returns the reset timestamp. All-or-nothing: readers never observe a
// partially cleared session. Resetting while tools are in flight is refused.
func (st *Store) Reset(id string) (time.Time, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.State == StateDispatchingTools {
		return time.Time{}, fmt.Errorf("session %s: %w", id, ErrResetMidTurn)
	}

	now := time.Now().UTC()
	s.Trace = nil
	s.History = nil
	s.TurnCount = 0
	s.State = StateInit
	s.Reason = ""
	s.ErrorMsg = ""
	s.StartedAt = now
	s.EndedAt = time.Time{}
	return now, nil
}

// Remove drops the session entirely.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Clear drops every session and returns the timestamp, for the service-level
// reset between independent task runs.
func (st *Store) Clear() time.Time {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = map[string]*Session{}
	return time.Now().UTC()
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
