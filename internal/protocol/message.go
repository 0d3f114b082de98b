// Package protocol implements the wire message model used between the
// evaluator and a participant agent: a JSON-RPC 2.0 envelope carrying a
// message made of typed parts (text, tool call, tool result).
package protocol

// Role identifies the author of a message.
type Role string

const (
	RoleEvaluator   Role = "evaluator"
	RoleParticipant Role = "participant"
)

// PartType tags the closed set of message part variants.
type PartType string

const (
	PartTypeText       PartType = "text"
	PartTypeToolCall   PartType = "tool_call"
	PartTypeToolResult PartType = "tool_result"
)

// Part is one element of a message. Exactly one concrete type exists per
// PartType; decoding rejects anything outside the closed set.
type Part interface {
	PartType() PartType
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

func (TextPart) PartType() PartType { return PartTypeText }

// ToolCallPart is a participant request to invoke a tool. Arguments is nil
// when the wire payload omitted the field entirely, and an empty non-nil map
// when the payload carried explicit empty arguments. The two are distinct
// states and must survive a round-trip.
type ToolCallPart struct {
	ID        string
	Name      string
	Arguments map[string]any
}

func (ToolCallPart) PartType() PartType { return PartTypeToolCall }

// ToolResultPart carries the outcome of a tool call back to the participant.
// Exactly one of Result or Error is set.
type ToolResultPart struct {
	ToolCallID string
	Result     any
	Error      string
	IsError    bool
}

func (ToolResultPart) PartType() PartType { return PartTypeToolResult }

// Message is an ordered sequence of parts from one role.
type Message struct {
	Role  Role
	Parts []Part
}

// ToolCalls returns the tool call parts of the message in order.
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Text concatenates all text parts of the message in order.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}
