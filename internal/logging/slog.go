// Package logging adapts log/slog to the es.Logger interface used by the
// codegen components.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/getpup/pupsourcing/es"
)

// Slog forwards es.Logger calls to a *slog.Logger.
type Slog struct {
	logger *slog.Logger
}

var _ es.Logger = (*Slog)(nil)

// NewSlog wraps logger. A nil logger uses slog.Default().
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

// Debug implements es.Logger.
func (s *Slog) Debug(ctx context.Context, msg string, keyvals ...interface{}) {
	s.logger.DebugContext(ctx, msg, keyvals...)
}

// Info implements es.Logger.
func (s *Slog) Info(ctx context.Context, msg string, keyvals ...interface{}) {
	s.logger.InfoContext(ctx, msg, keyvals...)
}

// Error implements es.Logger.
func (s *Slog) Error(ctx context.Context, msg string, keyvals ...interface{}) {
	s.logger.ErrorContext(ctx, msg, keyvals...)
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a text or JSON slog logger writing to w at the given level.
func New(w io.Writer, level slog.Level, json bool) *Slog {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return NewSlog(slog.New(h))
}
