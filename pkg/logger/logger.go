// Package logger is the zap setup shared by the API server and the chat
// bot. Every entry carries the binary's service name; turn logs add the
// conversation and transport so one chat can be followed across both.
package logger

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// Options selects the level, encoding and service name of a logger.
// Format is "json" (default) or "console".
type Options struct {
	Level   string
	Format  string
	Service string
}

// New creates a logger writing to stdout.
func New(opts Options) (*Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(opts.Level))
	config.Sampling = nil
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	switch strings.ToLower(opts.Format) {
	case "", "json":
	case "console":
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	config.OutputPaths = []string{"stdout"}

	var zopts []zap.Option
	if opts.Service != "" {
		zopts = append(zopts, zap.Fields(zap.String("service", opts.Service)))
	}

	logger, err := config.Build(zopts...)
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewNop creates a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// WithContext creates a child logger for one HTTP request.
func (l *Logger) WithContext(correlationID, conversationID string) *Logger {
	fields := []zap.Field{zap.String("correlation_id", correlationID)}
	if conversationID != "" {
		fields = append(fields, zap.String("conversation_id", conversationID))
	}
	return l.With(fields...)
}

// ForTurn creates a child logger for one dialogue turn. Empty values are
// left out.
func (l *Logger) ForTurn(conversationID, transport string) *Logger {
	var fields []zap.Field
	if conversationID != "" {
		fields = append(fields, zap.String("conversation_id", conversationID))
	}
	if transport != "" {
		fields = append(fields, zap.String("transport", transport))
	}
	return l.With(fields...)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
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

var global atomic.Pointer[Logger]

// Global returns the logger installed with SetGlobal, or a no-op logger.
func Global() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return NewNop()
}

// SetGlobal installs l as the global logger.
func SetGlobal(l *Logger) {
	global.Store(l)
}
