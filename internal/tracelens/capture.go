package tracelens

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kidpech/tracelens/internal/infrastructure/monitoring"
)

const defaultWorker = "main"

// CaptureCore is a zapcore.Core that copies events logged on behalf of a
// session into the registry. Loggers without a bound session are ignored.
// It never returns errors to the logging call path.
type CaptureCore struct {
	zapcore.LevelEnabler
	registry *Registry
	diag     *zap.Logger
	session  string
	worker   string
	fields   []zapcore.Field
}

// NewCaptureCore builds the capture hook. diag receives internal failures and
// must not itself be teed into a CaptureCore.
func NewCaptureCore(registry *Registry, level zapcore.LevelEnabler, diag *zap.Logger) *CaptureCore {
	if level == nil {
		level = zapcore.DebugLevel
	}
	if diag == nil {
		diag = zap.NewNop()
	}
	return &CaptureCore{LevelEnabler: level, registry: registry, diag: diag}
}

// With implements zapcore.Core.
func (c *CaptureCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone.fields = append(clone.fields, c.fields...)
	for _, f := range fields {
		switch {
		case f.Key == SessionKey && f.Type == zapcore.StringType:
			clone.session = f.String
		case f.Key == RequestIDKey && f.Type == zapcore.StringType:
			clone.worker = f.String
		default:
			clone.fields = append(clone.fields, f)
		}
	}
	return &clone
}

// Check implements zapcore.Core.
func (c *CaptureCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core.
func (c *CaptureCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	defer func() {
		if r := recover(); r != nil {
			c.fail(fmt.Errorf("capture panic: %v", r))
		}
	}()
	session, worker := c.session, c.worker
	rest := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	rest = append(rest, c.fields...)
	for _, f := range fields {
		switch {
		case f.Key == SessionKey && f.Type == zapcore.StringType:
			session = f.String
		case f.Key == RequestIDKey && f.Type == zapcore.StringType:
			worker = f.String
		default:
			rest = append(rest, f)
		}
	}
	if session == "" {
		monitoring.ObserveDropped()
		return nil
	}
	if c.registry == nil {
		c.fail(fmt.Errorf("capture for session %s: no registry", session))
		return nil
	}
	c.registry.AddLog(session, buildEntry(ent, rest, worker))
	return nil
}

// Sync implements zapcore.Core.
func (c *CaptureCore) Sync() error {
	return nil
}

func (c *CaptureCore) fail(err error) {
	monitoring.ReportCaptureFailure(err)
	c.diag.Warn("session log capture failed", zap.Error(err))
}

func buildEntry(ent zapcore.Entry, fields []zapcore.Field, worker string) LogEntry {
	if worker == "" {
		worker = defaultWorker
	}
	name := ent.LoggerName
	if name == "" {
		name = "root"
	}
	msg, verbose := renderMessage(ent.Message, fields)
	stack := ent.Stack
	if stack == "" {
		stack = verbose
	}
	return LogEntry{
		Timestamp: ent.Time,
		Level:     ent.Level.CapitalString(),
		Logger:    name,
		Message:   msg,
		Worker:    worker,
		Stack:     stack,
	}
}

// renderMessage appends fields as sorted key=value pairs. The errorVerbose
// field is returned separately to stand in for a stack trace.
func renderMessage(msg string, fields []zapcore.Field) (string, string) {
	if len(fields) == 0 {
		return msg, ""
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	var verbose string
	if v, ok := enc.Fields["errorVerbose"]; ok {
		verbose = fmt.Sprint(v)
		delete(enc.Fields, "errorVerbose")
	}
	if len(enc.Fields) == 0 {
		return msg, verbose
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		fmt.Fprint(&b, enc.Fields[k])
	}
	return b.String(), verbose
}
