package protocol

import (
	"encoding/json"
)

// JSON-RPC 2.0 envelope per https://www.jsonrpc.org/specification

// MethodMessageSend is the single RPC method of the conversation protocol.
const MethodMessageSend = "message/send"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      string          `json:"id"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Wire roles per the A2A convention: the evaluator speaks as "user", the
// participant answers as "assistant".
const (
	wireRoleUser      = "user"
	wireRoleAssistant = "assistant"
)

type wireMessage struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

// wirePart is the union of all part fields. Pointers and RawMessage keep
// absent fields distinguishable from explicit zero values.
type wirePart struct {
	Type       string          `json:"type"`
	Text       *string         `json:"text,omitempty"`
	ID         *string         `json:"id,omitempty"`
	Name       *string         `json:"name,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	ToolCallID *string         `json:"toolCallId,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

type messageSendParams struct {
	Message wireMessage `json:"message"`
}

type messageResult struct {
	Message wireMessage `json:"message"`
}

// EncodeMessageSend builds the request envelope for a message/send call.
func EncodeMessageSend(id string, msg Message) ([]byte, error) {
	wm, err := toWire(msg)
	if err != nil {
		return nil, err
	}
	params, err := json.Marshal(messageSendParams{Message: wm})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  MethodMessageSend,
		ID:      id,
		Params:  params,
	})
}

// DecodeMessageSend parses an incoming message/send request envelope,
// returning the request ID and the decoded message.
func DecodeMessageSend(data []byte) (string, Message, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return "", Message{}, malformed("invalid JSON: %v", err)
	}
	if req.JSONRPC != "2.0" {
		return "", Message{}, malformed("jsonrpc field must be %q, got %q", "2.0", req.JSONRPC)
	}
	if req.Method != MethodMessageSend {
		return "", Message{}, malformed("unsupported method %q", req.Method)
	}
	if len(req.Params) == 0 {
		return "", Message{}, missingField("params")
	}
	var params messageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return "", Message{}, malformed("invalid params: %v", err)
	}
	msg, err := fromWire(params.Message)
	if err != nil {
		return "", Message{}, err
	}
	return req.ID, msg, nil
}

// EncodeMessageResponse builds the response envelope carrying a message.
func EncodeMessageResponse(id string, msg Message) ([]byte, error) {
	wm, err := toWire(msg)
	if err != nil {
		return nil, err
	}
	result, err := json.Marshal(messageResult{Message: wm})
	if err != nil {
		return nil, err
	}
	idRaw, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Response{JSONRPC: "2.0", Result: result, ID: idRaw})
}

// EncodeErrorResponse builds a JSON-RPC error response envelope.
func EncodeErrorResponse(id string, rpcErr *RPCError) ([]byte, error) {
	idRaw, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Response{JSONRPC: "2.0", Error: rpcErr, ID: idRaw})
}

// DecodeMessageResponse parses a message/send response envelope. A JSON-RPC
// error object is surfaced as the returned *RPCError.
func DecodeMessageResponse(data []byte) (Message, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Message{}, malformed("invalid JSON: %v", err)
	}
	if resp.Error != nil {
		return Message{}, resp.Error
	}
	if len(resp.Result) == 0 {
		return Message{}, missingField("result")
	}
	var result messageResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return Message{}, malformed("invalid result: %v", err)
	}
	return fromWire(result.Message)
}

func toWire(msg Message) (wireMessage, error) {
	wm := wireMessage{Parts: []wirePart{}}
	switch msg.Role {
	case RoleEvaluator:
		wm.Role = wireRoleUser
	case RoleParticipant:
		wm.Role = wireRoleAssistant
	default:
		return wm, malformed("unknown role %q", msg.Role)
	}

	for _, p := range msg.Parts {
		switch part := p.(type) {
		case TextPart:
			text := part.Text
			wm.Parts = append(wm.Parts, wirePart{Type: string(PartTypeText), Text: &text})
		case ToolCallPart:
			id, name := part.ID, part.Name
			wp := wirePart{Type: string(PartTypeToolCall), ID: &id, Name: &name}
			if part.Arguments != nil {
				raw, err := json.Marshal(part.Arguments)
				if err != nil {
					return wm, err
				}
				wp.Arguments = raw
			}
			wm.Parts = append(wm.Parts, wp)
		case ToolResultPart:
			callID := part.ToolCallID
			wp := wirePart{Type: string(PartTypeToolResult), ToolCallID: &callID}
			if part.IsError {
				raw, err := json.Marshal(part.Error)
				if err != nil {
					return wm, err
				}
				wp.Error = raw
			} else {
				raw, err := json.Marshal(part.Result)
				if err != nil {
					return wm, err
				}
				wp.Result = raw
			}
			wm.Parts = append(wm.Parts, wp)
		default:
			return wm, malformed("unencodable part type %T", p)
		}
	}
	return wm, nil
}

func fromWire(wm wireMessage) (Message, error) {
	var msg Message
	switch wm.Role {
	case wireRoleUser:
		msg.Role = RoleEvaluator
	case wireRoleAssistant:
		msg.Role = RoleParticipant
	case "":
		return msg, missingField("message.role")
	default:
		return msg, malformed("unknown role %q", wm.Role)
	}

	for _, wp := range wm.Parts {
		part, err := decodePart(wp)
		if err != nil {
			return Message{}, err
		}
		msg.Parts = append(msg.Parts, part)
	}
	return msg, nil
}

func decodePart(wp wirePart) (Part, error) {
	switch PartType(wp.Type) {
	case PartTypeText:
		if wp.Text == nil {
			return nil, missingField("text")
		}
		return TextPart{Text: *wp.Text}, nil

	case PartTypeToolCall:
		if wp.ID == nil {
			return nil, missingField("id")
		}
		if wp.Name == nil {
			return nil, missingField("name")
		}
		part := ToolCallPart{ID: *wp.ID, Name: *wp.Name}
		if wp.Arguments != nil {
			// Explicit arguments, possibly empty. A nil map would conflate
			// absent-vs-empty, which argument scoring distinguishes.
			args := map[string]any{}
			if err := json.Unmarshal(wp.Arguments, &args); err != nil {
				return nil, malformed("tool_call arguments must be an object: %v", err)
			}
			part.Arguments = args
		}
		return part, nil

	case PartTypeToolResult:
		if wp.ToolCallID == nil {
			return nil, missingField("toolCallId")
		}
		part := ToolResultPart{ToolCallID: *wp.ToolCallID}
		switch {
		case wp.Error != nil:
			var errMsg string
			if err := json.Unmarshal(wp.Error, &errMsg); err != nil {
				return nil, malformed("tool_result error must be a string: %v", err)
			}
			part.IsError = true
			part.Error = errMsg
		case wp.Result != nil:
			var result any
			if err := json.Unmarshal(wp.Result, &result); err != nil {
				return nil, malformed("tool_result result is not valid JSON: %v", err)
			}
			part.Result = result
		default:
			return nil, missingField("result")
		}
		return part, nil

	case "":
		return nil, missingField("type")
	default:
		return nil, unknownPart(wp.Type)
	}
}
