package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is the sink for run events. Implementations must be safe for use
// from concurrent dispatch goroutines.
type Logger interface {
	Log(event Event) error
	Close() error
}

// JSONLogger appends one JSON object per line to an event log file, so a
// crash mid-run leaves every completed line readable.
type JSONLogger struct {
	mu  sync.Mutex
	out *os.File

	path string
}

// NewJSONLogger opens (or creates) the event log at path, creating missing
// parent directories.
func NewJSONLogger(path string) (*JSONLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log %q: %w", path, err)
	}
	return &JSONLogger{out: out, path: path}, nil
}

// Log appends event as a single line.
func (l *JSONLogger) Log(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.out.Write(append(line, '\n'))
	return err
}

// Close closes the underlying file. The logger is unusable afterwards.
func (l *JSONLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// Path reports where events are being written.
func (l *JSONLogger) Path() string {
	return l.path
}

// NopLogger drops every event. It is the default sink when event logging
// is not enabled.
type NopLogger struct{}

func (NopLogger) Log(Event) error { return nil }
func (NopLogger) Close() error    { return nil }

// DefaultLogPath names a fresh event log inside dir, keyed by UTC start
// time so successive runs sort chronologically.
func DefaultLogPath(dir string) string {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	return filepath.Join(dir, stamp+"-session.jsonl")
}
