// Package logger wraps zap with the fleet's single-line event=name log format.
package logger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin structured-logging facade over zap, shaped like the
// key/value loggers the rest of the pack uses, but rendered through kvEncoder
// so every line is "event=<name> key=value ..." per the fleet's log contract.
type Logger struct {
	core *zap.Logger
}

// New builds a Logger at the given level name (debug, info, warn, error;
// anything else falls back to info). Output always goes to stdout.
func New(level string) (*Logger, error) {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Development:      false,
		Encoding:         "kv",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if err := zap.RegisterEncoder("kv", func(zapcore.EncoderConfig) (zapcore.Encoder, error) {
		return newKVEncoder(), nil
	}); err != nil && !strings.Contains(err.Error(), "already registered") {
		return nil, fmt.Errorf("register kv encoder: %w", err)
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{core: zl}, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Sync() {
	if l == nil || l.core == nil {
		return
	}
	_ = l.core.Sync()
}

// With returns a child Logger carrying the given key/value pairs on every
// subsequent line, mirroring the teacher's per-component .With("service", ...).
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{core: l.core.With(fields(keysAndValues)...)}
}

// Debug, Info, Warn, Error, Fatal each emit one event line named by the first
// argument; the remaining keysAndValues become the line's key=value pairs.
func (l *Logger) Debug(event string, keysAndValues ...interface{}) {
	l.core.Debug(event, fields(keysAndValues)...)
}

func (l *Logger) Info(event string, keysAndValues ...interface{}) {
	l.core.Info(event, fields(keysAndValues)...)
}

func (l *Logger) Warn(event string, keysAndValues ...interface{}) {
	l.core.Warn(event, fields(keysAndValues)...)
}

func (l *Logger) Error(event string, keysAndValues ...interface{}) {
	l.core.Error(event, fields(keysAndValues)...)
}

func (l *Logger) Fatal(event string, keysAndValues ...interface{}) {
	l.core.Fatal(event, fields(keysAndValues)...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		out = append(out, zap.Any(key, keysAndValues[i+1]))
	}
	return out
}

// kvEncoder renders each log entry as one whitespace-separated key=value
// line, always led by event=<message>, per the fleet's §6 log contract.
// Fields accumulate through zapcore.MapObjectEncoder and are sorted by key
// so the same call always renders the same line (useful for tests).
type kvEncoder struct {
	*zapcore.MapObjectEncoder
}

func newKVEncoder() *kvEncoder {
	return &kvEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
}

func (e *kvEncoder) Clone() zapcore.Encoder {
	clone := newKVEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (e *kvEncoder) EncodeEntry(ent zapcore.Entry, extra []zapcore.Field) (*buffer.Buffer, error) {
	merged := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		merged.Fields[k] = v
	}
	for _, f := range extra {
		f.AddTo(merged)
	}

	buf := buffer.NewPool().Get()
	buf.AppendString("event=")
	buf.AppendString(sanitize(ent.Message))
	buf.AppendString(" level=")
	buf.AppendString(ent.Level.String())
	buf.AppendString(" time=")
	buf.AppendString(ent.Time.UTC().Format(time.RFC3339))

	keys := make([]string, 0, len(merged.Fields))
	for k := range merged.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.AppendByte(' ')
		buf.AppendString(sanitize(k))
		buf.AppendByte('=')
		buf.AppendString(renderValue(merged.Fields[k]))
	}
	if ent.Caller.Defined && ent.Level >= zapcore.ErrorLevel {
		buf.AppendString(" caller=")
		buf.AppendString(ent.Caller.TrimmedPath())
	}
	buf.AppendByte('\n')
	return buf, nil
}

// renderValue formats a field value per §6: nulls render "null", booleans
// "true"/"false", everything else its natural string form with whitespace
// collapsed so the line stays single-line and space-delimited.
func renderValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case string:
		return sanitize(t)
	case error:
		if t == nil {
			return "null"
		}
		return sanitize(t.Error())
	case fmt.Stringer:
		return sanitize(t.String())
	default:
		return sanitize(fmt.Sprintf("%v", t))
	}
}

func sanitize(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
