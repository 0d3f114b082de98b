package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/protocol"
	"github.com/google/uuid"
)

// Participant is the agent under evaluation. Send delivers one evaluator
// message and blocks until the participant's reply arrives.
type Participant interface {
	Send(ctx context.Context, msg protocol.Message) (protocol.Message, error)
}

// AgentCard is the metadata document a participant publishes at
// /.well-known/agent-card.json.
type AgentCard struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Version     string `json:"version,omitempty"`
}

// TransportError marks failures reaching the participant, as opposed to
// malformed replies. Callers inspect it to pick the completion reason.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("participant %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to a participant over HTTP using JSON-RPC message/send
// envelopes.
type Client struct {
	baseURL string
	client  *http.Client
	card    *AgentCard
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientHTTP replaces the underlying HTTP client.
func WithClientHTTP(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a participant client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect fetches the participant's agent card, verifying the endpoint is
// reachable before a session starts.
func (c *Client) Connect(ctx context.Context) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/.well-known/agent-card.json", nil)
	if err != nil {
		return nil, fmt.Errorf("building agent card request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "connect", Err: fmt.Errorf("agent card returned HTTP %d", resp.StatusCode)}
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decoding agent card: %w", err)
	}

	c.card = &card
	return &card, nil
}

// Card returns the agent card from the last successful Connect, or nil.
func (c *Client) Card() *AgentCard {
	return c.card
}

// Send posts one message/send request and decodes the participant's reply.
// Transport failures come back as *TransportError; malformed replies as
// *protocol.ProtocolError.
func (c *Client) Send(ctx context.Context, msg protocol.Message) (protocol.Message, error) {
	body, err := protocol.EncodeMessageSend(uuid.NewString(), msg)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return protocol.Message{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return protocol.Message{}, err
		}
		return protocol.Message{}, &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.Message{}, &TransportError{Op: "send", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return protocol.Message{}, &TransportError{Op: "send", Err: fmt.Errorf("participant returned HTTP %d", resp.StatusCode)}
	}

	reply, err := protocol.DecodeMessageResponse(data)
	if err != nil {
		return protocol.Message{}, err
	}
	return reply, nil
}

var _ Participant = (*Client)(nil)
