package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/time/rate"
)

// DefaultInvokeTimeout bounds a single tool call. Kept in single-digit
// seconds so a stalled upstream surfaces as UpstreamTimeout instead of
// blocking the session.
const DefaultInvokeTimeout = 8 * time.Second

// HTTPGateway talks to a tool provider over its HTTP boundary:
// GET {base}/tools for discovery, POST {base}/tools/call for invocation.
// The provider may sit behind a same-origin /mcp/* proxy; the gateway only
// sees the base URL it was given.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
	known   map[string]bool
}

// HTTPGatewayOption configures an HTTPGateway.
type HTTPGatewayOption func(*HTTPGateway)

// WithInvokeTimeout overrides the per-call timeout bound.
func WithInvokeTimeout(d time.Duration) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.client = c }
}

// WithRateLimit caps outbound calls per second across all sessions.
func WithRateLimit(perSecond float64, burst int) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.logger = l }
}

// NewHTTPGateway creates a gateway for the provider at baseURL.
func NewHTTPGateway(baseURL string, opts ...HTTPGatewayOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: DefaultInvokeTimeout,
		logger:  slog.Default(),
		schemas: map[string]*jsonschema.Schema{},
		known:   map[string]bool{},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// toolsResponse accepts both a bare schema array and the wrapped object
// form some providers return.
type toolsResponse struct {
	Tools []ToolSchema `json:"tools"`
}

// Discover fetches the provider's tool list and compiles the parameter
// schemas for argument validation on later calls.
func (g *HTTPGateway) Discover(ctx context.Context) ([]ToolSchema, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/tools", nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovering tools: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovering tools: provider returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tool list: %w", err)
	}

	var tools []ToolSchema
	if err := json.Unmarshal(body, &tools); err != nil {
		var wrapped toolsResponse
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("parsing tool list: %w", err)
		}
		tools = wrapped.Tools
	}

	g.rememberSchemas(tools)
	g.logger.Debug("tool discovery complete", "count", len(tools))
	return tools, nil
}

func (g *HTTPGateway) rememberSchemas(tools []ToolSchema) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.known = make(map[string]bool, len(tools))
	g.schemas = make(map[string]*jsonschema.Schema, len(tools))

	for _, tool := range tools {
		g.known[tool.Name] = true
		if tool.Parameters == nil {
			continue
		}
		compiler := jsonschema.NewCompiler()
		resource := tool.Name + ".schema.json"
		if err := compiler.AddResource(resource, tool.Parameters); err != nil {
			g.logger.Debug("skipping unparseable tool schema", "tool", tool.Name, "error", err)
			continue
		}
		sch, err := compiler.Compile(resource)
		if err != nil {
			g.logger.Debug("skipping uncompilable tool schema", "tool", tool.Name, "error", err)
			continue
		}
		g.schemas[tool.Name] = sch
	}
}

// checkArguments validates args against the tool's discovered parameter
// schema. Tools without a usable schema are not checked.
func (g *HTTPGateway) checkArguments(name string, args map[string]any) *ToolError {
	g.mu.RLock()
	sch := g.schemas[name]
	discovered := len(g.known) > 0
	known := g.known[name]
	g.mu.RUnlock()

	if discovered && !known {
		return &ToolError{Kind: ErrNotFound, Tool: name, Detail: "tool is not exposed by the provider"}
	}
	if sch == nil {
		return nil
	}

	// Schema validation treats absent arguments as an empty object; the
	// distinction is preserved on the Invocation either way.
	var doc any = map[string]any{}
	if args != nil {
		doc = mapToJSONValue(args)
	}
	if err := sch.Validate(doc); err != nil {
		return &ToolError{Kind: ErrInvalidArguments, Tool: name, Detail: err.Error()}
	}
	return nil
}

// callPayload is the provider's invocation request body.
type callPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// callResult is the provider's invocation response body.
type callResult struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Invoke calls a tool and resolves within the gateway timeout. The returned
// Invocation always carries the arguments exactly as transmitted.
func (g *HTTPGateway) Invoke(ctx context.Context, name string, args map[string]any) Invocation {
	inv := Invocation{Tool: name, Arguments: args}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			inv.Err = &ToolError{Kind: ErrUpstreamTimeout, Tool: name, Detail: "rate limit wait canceled"}
			return inv
		}
	}

	if terr := g.checkArguments(name, args); terr != nil {
		inv.Err = terr
		return inv
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	payload, err := json.Marshal(callPayload{Name: name, Arguments: args})
	if err != nil {
		inv.Err = &ToolError{Kind: ErrInvalidArguments, Tool: name, Detail: err.Error()}
		return inv
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/tools/call", bytes.NewReader(payload))
	if err != nil {
		inv.Err = &ToolError{Kind: ErrUpstreamUnavailable, Tool: name, Detail: err.Error()}
		return inv
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			inv.Err = &ToolError{Kind: ErrUpstreamTimeout, Tool: name, Detail: fmt.Sprintf("no response within %s", g.timeout)}
		} else {
			inv.Err = &ToolError{Kind: ErrUpstreamUnavailable, Tool: name, Detail: err.Error()}
		}
		return inv
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		inv.Err = &ToolError{Kind: ErrUpstreamUnavailable, Tool: name, Detail: err.Error()}
		return inv
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		inv.Err = &ToolError{Kind: ErrNotFound, Tool: name, Detail: strings.TrimSpace(string(body))}
		return inv
	case resp.StatusCode == http.StatusBadRequest:
		inv.Err = &ToolError{Kind: ErrInvalidArguments, Tool: name, Detail: strings.TrimSpace(string(body))}
		return inv
	case resp.StatusCode >= 500:
		inv.Err = &ToolError{Kind: ErrUpstreamUnavailable, Tool: name, Detail: resp.Status}
		return inv
	}

	var result callResult
	if err := json.Unmarshal(body, &result); err != nil {
		inv.Err = &ToolError{Kind: ErrUpstreamUnavailable, Tool: name, Detail: fmt.Sprintf("unparseable provider response: %v", err)}
		return inv
	}

	if result.Error != nil {
		// The tool ran and reported an error payload. That is a tool-level
		// failure, not a gateway failure; the session keeps going.
		var errText string
		if err := json.Unmarshal(result.Error, &errText); err != nil {
			errText = string(result.Error)
		}
		inv.ErrorText = errText
		return inv
	}

	if result.Result != nil {
		var value any
		if err := json.Unmarshal(result.Result, &value); err != nil {
			inv.Err = &ToolError{Kind: ErrUpstreamUnavailable, Tool: name, Detail: fmt.Sprintf("unparseable tool result: %v", err)}
			return inv
		}
		inv.Result = value
		return inv
	}

	// Neither result nor error key: take the whole body as the result,
	// matching providers that respond with the raw value.
	var value any
	if err := json.Unmarshal(body, &value); err == nil {
		inv.Result = value
	}
	return inv
}

// mapToJSONValue normalizes a Go map through JSON so schema validation sees
// the same value shapes the wire would produce.
func mapToJSONValue(args map[string]any) any {
	data, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return args
	}
	return doc
}

var _ Invoker = (*HTTPGateway)(nil)
