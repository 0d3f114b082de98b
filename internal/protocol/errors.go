package protocol

import "fmt"

// ProtocolErrorKind classifies decode failures.
type ProtocolErrorKind string

const (
	KindMalformedEnvelope ProtocolErrorKind = "malformed_envelope"
	KindUnknownPartType   ProtocolErrorKind = "unknown_part_type"
	KindMissingField      ProtocolErrorKind = "missing_field"
)

// ProtocolError is returned when a wire payload cannot be decoded into a
// valid message. Decoding never coerces a missing field into a default that
// could be mistaken for an explicit value.
type ProtocolError struct {
	Kind   ProtocolErrorKind
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error (%s): %s", e.Kind, e.Detail)
}

func malformed(format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: KindMalformedEnvelope, Detail: fmt.Sprintf(format, args...)}
}

func unknownPart(partType string) *ProtocolError {
	return &ProtocolError{Kind: KindUnknownPartType, Detail: fmt.Sprintf("unrecognized part type %q", partType)}
}

func missingField(field string) *ProtocolError {
	return &ProtocolError{Kind: KindMissingField, Detail: fmt.Sprintf("required field %q is absent", field)}
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application-specific error codes.
const (
	CodeTaskNotFound    = -32000
	CodeEvaluationError = -32001
)

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

func ErrParseError(data any) *RPCError {
	return &RPCError{Code: CodeParseError, Message: "Parse error", Data: data}
}

func ErrInvalidRequest(data any) *RPCError {
	return &RPCError{Code: CodeInvalidRequest, Message: "Invalid request", Data: data}
}

func ErrMethodNotFound(method string) *RPCError {
	return &RPCError{Code: CodeMethodNotFound, Message: "Method not found", Data: method}
}

func ErrInvalidParams(data any) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: "Invalid params", Data: data}
}

func ErrInternalError(data any) *RPCError {
	return &RPCError{Code: CodeInternalError, Message: "Internal error", Data: data}
}
