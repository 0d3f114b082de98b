package session

import "time"

// EventType identifies the kind of session event.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_complete"
	EventTurn         EventType = "turn"
	EventToolDispatch EventType = "tool_dispatch"
	EventStateChange  EventType = "state_change"
	EventError        EventType = "error"
)

// Event is a single timestamped entry in a session log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Data:      data,
	}
}

// SessionStartData returns event data for a session start.
func SessionStartData(sessionID, taskID, participantURL string, maxTurns int) map[string]any {
	return map[string]any{
		"session_id":  sessionID,
		"task_id":     taskID,
		"participant": participantURL,
		"max_turns":   maxTurns,
	}
}

// SessionEndData returns event data for a session end.
func SessionEndData(sessionID string, state State, reason CompletionReason, turns int, durationMs int64) map[string]any {
	return map[string]any{
		"session_id":  sessionID,
		"state":       string(state),
		"reason":      string(reason),
		"turns":       turns,
		"duration_ms": durationMs,
	}
}

// TurnData returns event data for a completed participant turn.
func TurnData(sessionID string, turn, toolCalls int, textLen int) map[string]any {
	return map[string]any{
		"session_id": sessionID,
		"turn":       turn,
		"tool_calls": toolCalls,
		"text_len":   textLen,
	}
}

// ToolDispatchData returns event data for a single tool invocation.
func ToolDispatchData(sessionID, callID, tool string, failed bool, durationMs int64) map[string]any {
	return map[string]any{
		"session_id":  sessionID,
		"call_id":     callID,
		"tool":        tool,
		"failed":      failed,
		"duration_ms": durationMs,
	}
}

// StateChangeData returns event data for a state transition.
func StateChangeData(sessionID string, from, to State) map[string]any {
	return map[string]any{
		"session_id": sessionID,
		"from":       string(from),
		"to":         string(to),
	}
}

// ErrorData returns event data for an error.
func ErrorData(message string, details map[string]any) map[string]any {
	d := map[string]any{
		"message": message,
	}
	for k, v := range details {
		d[k] = v
	}
	return d
}
