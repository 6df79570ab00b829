// Package logger wraps zap with the With(kv...) convention used across
// the orchestrator, event bus, checkpoint store, and HTTP layer.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

type Logger struct {
	sugared *zap.SugaredLogger
}

func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugared: z.Sugar()}, nil
}

func (l *Logger) Sync() {
	if l == nil || l.sugared == nil {
		return
	}
	_ = l.sugared.Sync()
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugared.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugared.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugared.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugared.Errorw(msg, kv...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	if l == nil || l.sugared == nil {
		return l
	}
	return &Logger{sugared: l.sugared.With(kv...)}
}

// Nop returns a logger that discards everything; convenient for tests.
func Nop() *Logger {
	return &Logger{sugared: zap.NewNop().Sugar()}
}
