// Package corelog provides the structured logger used by the solver, the
// resolve pipeline, and the workflow runner to emit the handful of spans
// worth tracing (resolve, getStatus, process) without instrumenting every
// method.
package corelog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	cblog "github.com/charmbracelet/log"
)

// Options configures a Logger at construction time.
type Options struct {
	Writer        io.Writer
	Level         string
	HumanReadable bool
	Component     string
	Fields        map[string]interface{}
}

// Logger wraps charmbracelet/log with ordered field merging and correlation
// ID propagation pulled from context.
type Logger struct {
	base      *cblog.Logger
	fields    []interface{}
	component string
}

// New builds a Logger from Options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}

	level := cblog.InfoLevel
	if opts.Level != "" {
		parsed, err := cblog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	formatter := cblog.JSONFormatter
	if opts.HumanReadable {
		formatter = cblog.TextFormatter
	}

	base := cblog.NewWithOptions(writer, cblog.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       formatter,
		Fields:          mapToFields(opts.Fields),
	})

	var fields []interface{}
	if opts.Component != "" {
		fields = append(fields, "component", opts.Component)
	}

	return &Logger{base: base, fields: fields, component: opts.Component}, nil
}

// WithFields returns a derived logger that always includes the supplied
// fields, sorted by key for deterministic output.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil || len(fields) == 0 {
		return l
	}
	return &Logger{
		base:      l.base,
		fields:    mergeOrdered(l.fields, mapToFields(fields)),
		component: l.component,
	}
}

// Debug logs at debug level, tagging the correlation ID from ctx if present.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.DebugLevel, msg, fields...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.InfoLevel, msg, fields...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.WarnLevel, msg, fields...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.ErrorLevel, msg, fields...)
}

func (l *Logger) log(ctx context.Context, level cblog.Level, msg string, fields ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	payload := mergeOrdered(l.fields, fields)
	if id := CorrelationID(ctx); id != "" {
		payload = append(payload, "correlation_id", id)
	}

	switch level {
	case cblog.DebugLevel:
		l.base.Debug(msg, payload...)
	case cblog.WarnLevel:
		l.base.Warn(msg, payload...)
	case cblog.ErrorLevel:
		l.base.Error(msg, payload...)
	default:
		l.base.Info(msg, payload...)
	}
}

func mapToFields(input map[string]interface{}) []interface{} {
	if len(input) == 0 {
		return nil
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]interface{}, 0, len(input)*2)
	for _, k := range keys {
		out = append(out, k, input[k])
	}
	return out
}

func mergeOrdered(base, additions []interface{}) []interface{} {
	if len(additions) == 0 {
		return base
	}
	out := make([]interface{}, 0, len(base)+len(additions))
	out = append(out, base...)
	out = append(out, additions...)
	return out
}
