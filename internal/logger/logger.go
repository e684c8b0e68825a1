package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

var defaultLogger = slog.New(newHandler(os.Stdout, "INFO", "json"))

type ctxKey string

const requestIDKey ctxKey = "request_id"

// FileConfig enables a size-rotated copy of the log stream
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init initializes the global logger with the specified level and format
func Init(level, format string) {
	InitWithFile(level, format, FileConfig{})
}

// InitWithFile is Init plus an optional rotated log file.
func InitWithFile(level, format string, file FileConfig) {
	var out io.Writer = os.Stdout
	if file.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    orDefault(file.MaxSizeMB, 10),
			MaxBackups: orDefault(file.MaxBackups, 7),
			MaxAge:     orDefault(file.MaxAgeDays, 28),
			Compress:   true,
		})
	}

	defaultLogger = slog.New(newHandler(out, level, format))
	slog.SetDefault(defaultLogger)
}

func newHandler(out io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: false,
	}

	if format == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

// ParseLevel maps a level name to slog.Level, defaulting to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Get returns the default logger instance
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("INFO", "json")
	}
	return defaultLogger
}

// ContextWithRequestID stores a request ID for WithContext.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// WithContext returns a logger with context-specific fields
func WithContext(ctx context.Context) *slog.Logger {
	logger := Get()

	if reqID, ok := RequestIDFromContext(ctx); ok {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithRequestID returns a logger with a request ID attached
func WithRequestID(requestID string) *slog.Logger {
	return Get().With("request_id", requestID)
}

// WithFields returns a logger with additional key-value pairs
func WithFields(fields ...any) *slog.Logger {
	return Get().With(fields...)
}

// NewRequestID generates a new UUID for request tracking
func NewRequestID() string {
	return uuid.New().String()
}

// Fatal logs an error message and exits the application
// This is a helper function since slog doesn't have Fatal level
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
