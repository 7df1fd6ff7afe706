// Package logging adapts zap to the es.Logger interface used across the module.
package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/getpup/pupsourcing/es"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger at the given level ("debug", "info", "warn", "error").
// Development loggers use the console encoder.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Logger implements es.Logger on top of a sugared zap logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ es.Logger = (*Logger)(nil)

// NewZap wraps a zap logger. A nil logger yields a no-op logger.
func NewZap(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{sugar: l.Sugar()}
}

// Debug logs at debug level. keyvals are alternating keys and values.
func (l *Logger) Debug(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Debugw(msg, keyvals...)
}

// Info logs at info level.
func (l *Logger) Info(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

// Error logs at error level.
func (l *Logger) Error(_ context.Context, msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
