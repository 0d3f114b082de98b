// Package toolhost is an in-process tool provider with canned domain tools.
// It backs local evaluation runs so a session can exercise the full
// discover/invoke path without external services.
package toolhost

import (
	"fmt"
	"sync"
	"time"

	"github.com/AX-AIAgents/AgentX/internal/gateway"
)

// Handler executes one tool call. A returned error becomes a tool-level
// error payload, not an HTTP failure.
type Handler func(args map[string]any) (any, error)

// CallRecord is one observed invocation.
type CallRecord struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Timestamp time.Time      `json:"timestamp"`
}

// Provider holds registered tools and tracks every call made against them.
type Provider struct {
	mu       sync.Mutex
	tools    []gateway.ToolSchema
	handlers map[string]Handler
	calls    []CallRecord
	task     string
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{handlers: map[string]Handler{}}
}

// Register adds a tool. A nil handler echoes an ok payload.
func (p *Provider) Register(schema gateway.ToolSchema, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if handler == nil {
		handler = func(map[string]any) (any, error) {
			return map[string]any{"status": "ok"}, nil
		}
	}
	p.tools = append(p.tools, schema)
	p.handlers[schema.Name] = handler
}

// Tools lists the registered tool schemas.
func (p *Provider) Tools() []gateway.ToolSchema {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]gateway.ToolSchema, len(p.tools))
	copy(out, p.tools)
	return out
}

// Call invokes a tool by name, recording the call. found reports whether
// the tool exists; err carries a tool-level failure.
func (p *Provider) Call(name string, args map[string]any) (result any, found bool, err error) {
	p.mu.Lock()
	handler, ok := p.handlers[name]
	if ok {
		p.calls = append(p.calls, CallRecord{
			Tool:      name,
			Arguments: args,
			Timestamp: time.Now().UTC(),
		})
	}
	p.mu.Unlock()

	if !ok {
		return nil, false, nil
	}
	result, err = handler(args)
	return result, true, err
}

// Calls returns every recorded invocation, in order.
func (p *Provider) Calls() []CallRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CallRecord, len(p.calls))
	copy(out, p.calls)
	return out
}

// Reset clears call history and the current task.
func (p *Provider) Reset() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
	p.task = ""
	return time.Now().UTC()
}

// SetTask records the task description for the current run.
func (p *Provider) SetTask(task string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.task = task
}

// Task returns the task description for the current run.
func (p *Provider) Task() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.task
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// RegisterDomain adds the canned tools for one mock domain. Unknown domains
// are an error so task files cannot silently reference missing tooling.
func (p *Provider) RegisterDomain(domain string) error {
	switch domain {
	case "notion":
		p.Register(gateway.ToolSchema{
			Name:        "notion_create_page",
			Description: "Create a new Notion page",
			Parameters: objectSchema(map[string]any{
				"title":   stringProp("Page title"),
				"content": stringProp("Page body in markdown"),
			}, "title"),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"page_id": "pg_001", "title": args["title"]}, nil
		})
		p.Register(gateway.ToolSchema{
			Name:        "notion_search",
			Description: "Search Notion pages",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("Search query"),
			}, "query"),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"results": []any{map[string]any{"page_id": "pg_001", "title": "Weekly notes"}}}, nil
		})

	case "gmail":
		p.Register(gateway.ToolSchema{
			Name:        "gmail_send_email",
			Description: "Send an email",
			Parameters: objectSchema(map[string]any{
				"to":      stringProp("Recipient address"),
				"subject": stringProp("Subject line"),
				"body":    stringProp("Message body"),
			}, "to", "subject"),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"message_id": "msg_001", "to": args["to"]}, nil
		})
		p.Register(gateway.ToolSchema{
			Name:        "gmail_search",
			Description: "Search the mailbox",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("Search query"),
			}, "query"),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"messages": []any{map[string]any{"message_id": "msg_001", "subject": "Quarterly report"}}}, nil
		})

	case "search":
		p.Register(gateway.ToolSchema{
			Name:        "search_web",
			Description: "Search the web",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("Search query"),
			}, "query"),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"results": []any{
				map[string]any{"title": "Result one", "url": "https://example.com/1"},
				map[string]any{"title": "Result two", "url": "https://example.com/2"},
			}}, nil
		})

	case "youtube":
		p.Register(gateway.ToolSchema{
			Name:        "youtube_search",
			Description: "Search YouTube videos",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("Search query"),
			}, "query"),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"videos": []any{map[string]any{"video_id": "vid_001", "title": "Intro talk"}}}, nil
		})
		p.Register(gateway.ToolSchema{
			Name:        "youtube_get_transcript",
			Description: "Fetch the transcript of a video",
			Parameters: objectSchema(map[string]any{
				"video_id": stringProp("Video identifier"),
			}, "video_id"),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"video_id": args["video_id"], "transcript": "Welcome to the talk."}, nil
		})

	case "drive":
		p.Register(gateway.ToolSchema{
			Name:        "drive_upload_file",
			Description: "Upload a file to Drive",
			Parameters: objectSchema(map[string]any{
				"name":    stringProp("File name"),
				"content": stringProp("File content"),
			}, "name"),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"file_id": "file_001", "name": args["name"]}, nil
		})
		p.Register(gateway.ToolSchema{
			Name:        "drive_list_files",
			Description: "List files in Drive",
			Parameters:  objectSchema(map[string]any{}),
		}, func(args map[string]any) (any, error) {
			return map[string]any{"files": []any{map[string]any{"file_id": "file_001", "name": "notes.txt"}}}, nil
		})

	default:
		return fmt.Errorf("unknown tool domain %q", domain)
	}
	return nil
}

// Domains lists the mock domains RegisterDomain accepts.
func Domains() []string {
	return []string{"notion", "gmail", "search", "youtube", "drive"}
}
