package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger writes diagnostics to stderr. User-facing output does not go
// through it.
type Logger struct {
	logger *slog.Logger
}

type Option func(*options)

type options struct {
	writer io.Writer
	json   bool
}

func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithJSON switches from the text handler to the JSON handler.
func WithJSON() Option {
	return func(o *options) {
		o.json = true
	}
}

// New returns a logger at the given level (debug, info, warn, error).
func New(level string, opts ...Option) (*Logger, error) {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	writer := cfg.writer
	if writer == nil {
		writer = os.Stderr
	}

	handlerOptions := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewTextHandler(writer, handlerOptions)
	if cfg.json {
		handler = slog.NewJSONHandler(writer, handlerOptions)
	}
	return &Logger{logger: slog.New(handler)}, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
}

// With returns a logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Log(context.Background(), level, msg, args...)
}

// AttachError appends the error to the attribute list.
func AttachError(err error, args ...any) []any {
	if err == nil {
		return args
	}
	return append(args, "error", err.Error())
}
