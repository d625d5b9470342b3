package util

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go-ticker/internal/common"
)

// Logger provides utility functions for consistent logging.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a console Logger at the given level, falling back to info.
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(zerolog.ConsoleWriter{Out: os.Stdout}, level)
}

// NewLoggerWithWriter creates a Logger writing to w.
func NewLoggerWithWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger().Level(lvl)}
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Level reports the active level.
func (l *Logger) Level() zerolog.Level {
	return l.zl.GetLevel()
}

// With returns a child Logger carrying a component field.
func (l *Logger) With(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// Error logs an error with the specified error code, message, and optional fields.
func (l *Logger) Error(err error, errorCode common.ErrorCode, errorMsg common.ErrorMessage, msg string, fields ...interface{}) {
	event := l.zl.Error().
		Err(err).
		Str("error_code", errorCode.String()).
		Str("error_message", errorMsg.String())
	withFields(event, fields).Msg(msg)
}

// Warn logs a warning with the specified error code, message, and optional fields.
func (l *Logger) Warn(errorCode common.ErrorCode, errorMsg common.ErrorMessage, msg string, fields ...interface{}) {
	event := l.zl.Warn().
		Str("error_code", errorCode.String()).
		Str("error_message", errorMsg.String())
	withFields(event, fields).Msg(msg)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields ...interface{}) {
	withFields(l.zl.Info(), fields).Msg(msg)
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields ...interface{}) {
	withFields(l.zl.Debug(), fields).Msg(msg)
}

// withFields adds key-value pairs; a trailing key without value is ignored.
func withFields(event *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, fields[i+1])
	}
	return event
}
