package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceFile is the file name TraceLogger writes to inside its directory.
const TraceFile = "transitions.jsonl"

// TransitionEvent is one line of the transition trace.
type TransitionEvent struct {
	Time      string `json:"time"`
	Period    string `json:"period"`
	Segment   string `json:"segment"`
	Flow      string `json:"flow"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Attempted int64  `json:"attempted"`
	Moved     int64  `json:"moved"`
	Rejected  int64  `json:"rejected,omitempty"`
}

// TraceLogger appends TransitionEvents to a JSONL file.
// It is safe for concurrent use. A nil TraceLogger is safe to use;
// all methods are no-ops on nil receiver.
type TraceLogger struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// NewTraceLogger creates a trace logger writing to dir/transitions.jsonl.
// At "info" level it returns nil and no file is created.
// Returns nil if the file cannot be opened.
func NewTraceLogger(dir string, level string) *TraceLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &TraceLogger{file: f, now: time.Now}
}

// Log writes ev as a single JSONL line, stamping Time when it is empty.
// Safe to call on nil receiver.
func (tl *TraceLogger) Log(ev TransitionEvent) {
	if tl == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.file == nil {
		return
	}
	if ev.Time == "" {
		ev.Time = tl.now().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = tl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tl *TraceLogger) Close() {
	if tl == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.file != nil {
		tl.file.Close()
		tl.file = nil
	}
}
