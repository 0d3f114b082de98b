package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPGateway_DiscoverAndInvoke(t *testing.T) {
	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tools":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"tools": []ToolSchema{{
					Name:        "search_web",
					Description: "Search the web",
					Parameters: map[string]any{
						"type":       "object",
						"properties": map[string]any{"query": map[string]any{"type": "string"}},
						"required":   []any{"query"},
					},
				}},
			})
		case "/tools/call":
			var payload struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "search_web", payload.Name)
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"result": map[string]any{"hits": 3, "query": payload.Arguments["query"]},
			})
		default:
			http.NotFound(w, r)
		}
	})

	g := NewHTTPGateway(srv.URL)

	tools, err := g.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search_web", tools[0].Name)

	inv := g.Invoke(context.Background(), "search_web", map[string]any{"query": "golang"})
	require.Nil(t, inv.Err)
	assert.False(t, inv.Failed())
	assert.Equal(t, map[string]any{"query": "golang"}, inv.Arguments)

	result := inv.Result.(map[string]any)
	assert.Equal(t, "golang", result["query"])
}

func TestHTTPGateway_InvalidArgumentsRejectedBeforeDispatch(t *testing.T) {
	dispatched := false
	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tools" {
			json.NewEncoder(w).Encode([]ToolSchema{{ //nolint:errcheck
				Name: "send_email",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"to": map[string]any{"type": "string"}},
					"required":   []any{"to"},
				},
			}})
			return
		}
		dispatched = true
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{}}) //nolint:errcheck
	})

	g := NewHTTPGateway(srv.URL)
	_, err := g.Discover(context.Background())
	require.NoError(t, err)

	inv := g.Invoke(context.Background(), "send_email", map[string]any{"subject": "hi"})
	require.NotNil(t, inv.Err)
	assert.Equal(t, ErrInvalidArguments, inv.Err.Kind)
	assert.False(t, dispatched, "invalid arguments must not reach the provider")

	// The rejected arguments are still reported exactly as given.
	assert.Equal(t, map[string]any{"subject": "hi"}, inv.Arguments)
}

func TestHTTPGateway_UnknownToolAfterDiscovery(t *testing.T) {
	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]ToolSchema{{Name: "known_tool"}}) //nolint:errcheck
	})

	g := NewHTTPGateway(srv.URL)
	_, err := g.Discover(context.Background())
	require.NoError(t, err)

	inv := g.Invoke(context.Background(), "mystery_tool", nil)
	require.NotNil(t, inv.Err)
	assert.Equal(t, ErrNotFound, inv.Err.Kind)
}

func TestHTTPGateway_UpstreamTimeout(t *testing.T) {
	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"result": "late"}) //nolint:errcheck
	})

	g := NewHTTPGateway(srv.URL, WithInvokeTimeout(30*time.Millisecond))

	inv := g.Invoke(context.Background(), "slow_tool", nil)
	require.NotNil(t, inv.Err)
	assert.Equal(t, ErrUpstreamTimeout, inv.Err.Kind)
}

func TestHTTPGateway_UpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // provider is gone

	g := NewHTTPGateway(srv.URL, WithInvokeTimeout(200*time.Millisecond))

	inv := g.Invoke(context.Background(), "any_tool", nil)
	require.NotNil(t, inv.Err)
	assert.Equal(t, ErrUpstreamUnavailable, inv.Err.Kind)
}

func TestHTTPGateway_ToolReportedError(t *testing.T) {
	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "quota exceeded"}) //nolint:errcheck
	})

	g := NewHTTPGateway(srv.URL)

	inv := g.Invoke(context.Background(), "search_web", map[string]any{"query": "x"})
	assert.Nil(t, inv.Err)
	assert.True(t, inv.Failed())
	assert.Equal(t, "quota exceeded", inv.ErrorMessage())
}

func TestHTTPGateway_HTTPErrorStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrInvalidArguments},
		{http.StatusInternalServerError, ErrUpstreamUnavailable},
	}

	for _, tc := range cases {
		srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})
		g := NewHTTPGateway(srv.URL)

		inv := g.Invoke(context.Background(), "t", nil)
		require.NotNil(t, inv.Err, "status %d", tc.status)
		assert.Equal(t, tc.kind, inv.Err.Kind, "status %d", tc.status)
	}
}

func TestMockInvoker(t *testing.T) {
	m := NewMockInvoker()
	m.Register(ToolSchema{Name: "echo"}, func(args map[string]any) (any, error) {
		return args, nil
	})

	tools, err := m.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 1)

	inv := m.Invoke(context.Background(), "echo", map[string]any{"v": "x"})
	assert.False(t, inv.Failed())

	missing := m.Invoke(context.Background(), "nope", nil)
	require.NotNil(t, missing.Err)
	assert.Equal(t, ErrNotFound, missing.Err.Kind)

	assert.Len(t, m.Calls(), 2)
}
