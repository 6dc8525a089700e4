package gerbango

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging interface consumed by the client.
// Keyvals are alternating key/value pairs, as in WithSimpleLogger output.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// SimpleLogger writes human-readable lines to stderr via the standard log
// package. Intended for examples and local debugging.
type SimpleLogger struct {
	logger *log.Logger
}

// NewSimpleLogger creates a console logger.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		logger: log.New(os.Stderr, "gerbango ", log.LstdFlags|log.Lmicroseconds),
	}
}

func (l *SimpleLogger) Debug(msg string, keyvals ...any) { l.print("DEBUG", msg, keyvals) }
func (l *SimpleLogger) Info(msg string, keyvals ...any)  { l.print("INFO", msg, keyvals) }
func (l *SimpleLogger) Warn(msg string, keyvals ...any)  { l.print("WARN", msg, keyvals) }
func (l *SimpleLogger) Error(msg string, keyvals ...any) { l.print("ERROR", msg, keyvals) }

func (l *SimpleLogger) print(level, msg string, keyvals []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
	}
	if len(keyvals)%2 != 0 {
		fmt.Fprintf(&b, " %v=?", keyvals[len(keyvals)-1])
	}
	l.logger.Print(b.String())
}

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps a zerolog.Logger for use with WithLogger.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl}
}

// NewDefaultZerologLogger creates a JSON logger on stderr with timestamps,
// suitable for production use.
func NewDefaultZerologLogger() Logger {
	return &zerologLogger{
		zl: zerolog.New(os.Stderr).With().Timestamp().Str("component", "gerbango").Logger(),
	}
}

func (l *zerologLogger) Debug(msg string, keyvals ...any) { emit(l.zl.Debug(), msg, keyvals) }
func (l *zerologLogger) Info(msg string, keyvals ...any)  { emit(l.zl.Info(), msg, keyvals) }
func (l *zerologLogger) Warn(msg string, keyvals ...any)  { emit(l.zl.Warn(), msg, keyvals) }
func (l *zerologLogger) Error(msg string, keyvals ...any) { emit(l.zl.Error(), msg, keyvals) }

func emit(ev *zerolog.Event, msg string, keyvals []any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		ev = ev.Interface(fmt.Sprintf("%v", keyvals[i]), keyvals[i+1])
	}
	ev.Msg(msg)
}

// DebugConfig gates per-concern debug logging. All flags default to on once
// debug is enabled; disable individual concerns to cut noise.
type DebugConfig struct {
	Enabled         bool
	LogRequests     bool
	LogRetries      bool
	LogCache        bool
	LogRateLimit    bool
	LogInvalidation bool
	// RequestIDGen produces the per-call correlation ID attached to logs and
	// errors.
	RequestIDGen func() string
}

// DefaultDebugConfig returns a disabled config with every concern selected
// and UUID request IDs.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:         false,
		LogRequests:     true,
		LogRetries:      true,
		LogCache:        true,
		LogRateLimit:    true,
		LogInvalidation: true,
		RequestIDGen:    uuid.NewString,
	}
}
