package gateway

import (
	"context"
	"sync"
)

// MockInvoker is an in-memory Invoker for tests and dry runs. Handlers are
// keyed by tool name; unknown names produce ErrNotFound.
type MockInvoker struct {
	mu       sync.Mutex
	tools    []ToolSchema
	handlers map[string]func(args map[string]any) (any, error)
	calls    []Invocation
}

// NewMockInvoker creates an empty mock.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{handlers: map[string]func(args map[string]any) (any, error){}}
}

// Register adds a tool with a handler. A nil handler returns an empty object.
func (m *MockInvoker) Register(schema ToolSchema, handler func(args map[string]any) (any, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, schema)
	if handler == nil {
		handler = func(map[string]any) (any, error) { return map[string]any{}, nil }
	}
	m.handlers[schema.Name] = handler
}

// Discover lists the registered tools.
func (m *MockInvoker) Discover(ctx context.Context) ([]ToolSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ToolSchema, len(m.tools))
	copy(out, m.tools)
	return out, nil
}

// Invoke runs the registered handler.
func (m *MockInvoker) Invoke(ctx context.Context, name string, args map[string]any) Invocation {
	inv := Invocation{Tool: name, Arguments: args}

	m.mu.Lock()
	handler, ok := m.handlers[name]
	m.mu.Unlock()

	if !ok {
		inv.Err = &ToolError{Kind: ErrNotFound, Tool: name, Detail: "tool is not registered"}
	} else if result, err := handler(args); err != nil {
		inv.ErrorText = err.Error()
	} else {
		inv.Result = result
	}

	m.mu.Lock()
	m.calls = append(m.calls, inv)
	m.mu.Unlock()
	return inv
}

// Calls returns every invocation the mock has seen, in order.
func (m *MockInvoker) Calls() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Invocation, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Invoker = (*MockInvoker)(nil)
