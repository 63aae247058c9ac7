package logging

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/rs/zerolog"
)

// Logger provides structured logging
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new logger
func NewLogger(level, format, output string) *Logger {
	var out io.Writer

	switch output {
	case "stdout", "":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("Failed to open log file %s: %v, using stdout", output, err)
			out = os.Stdout
		} else {
			out = file
		}
	}

	return New(out, level, format)
}

// New creates a logger writing to w
func New(w io.Writer, level, format string) *Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "2006-01-02T15:04:05Z07:00"}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying the given fields on every entry
func (l *Logger) With(fields map[string]interface{}) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// FromContext returns a child logger tagged with the request id in ctx, if any
func (l *Logger) FromContext(ctx context.Context) *Logger {
	if l == nil {
		return nil
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return &Logger{zl: l.zl.With().Str("request_id", id).Logger()}
	}
	return l
}

func (l *Logger) log(level zerolog.Level, message string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	event := l.zl.WithLevel(level)
	if event == nil {
		return
	}
	if len(fields) > 0 {
		event = event.Fields(fields)
	}
	event.Msg(message)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(zerolog.DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(zerolog.InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(zerolog.WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.log(zerolog.ErrorLevel, message, fields)
}

type requestIDKeyType string

const requestIDKey requestIDKeyType = "request_id"

// ContextWithRequestID stores the request id for log correlation
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored in ctx
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
