package tracelens

import (
	"strings"
	"time"
)

// LogEntry is one captured log event. Values are never mutated after capture.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Logger    string    `json:"logger"`
	Message   string    `json:"message"`
	Worker    string    `json:"worker"`
	Stack     string    `json:"stack,omitempty"`
}

// Format renders the entry as a single stream line, followed by the stack
// trace on its own lines when present.
func (e LogEntry) Format() string {
	var b strings.Builder
	b.Grow(len(e.Message) + len(e.Logger) + len(e.Stack) + 64)
	b.WriteByte('[')
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteString("] [")
	b.WriteString(e.Level)
	b.WriteString("] [")
	b.WriteString(e.Worker)
	b.WriteString("] ")
	b.WriteString(e.Logger)
	b.WriteString(" - ")
	b.WriteString(e.Message)
	if e.Stack != "" {
		b.WriteByte('\n')
		b.WriteString(e.Stack)
	}
	return b.String()
}

// FormatAll renders entries in order.
func FormatAll(entries []LogEntry, render func(LogEntry) string) []string {
	if render == nil {
		render = LogEntry.Format
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = render(e)
	}
	return out
}
