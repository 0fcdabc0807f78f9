package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a structured logger configured for JSON output on stderr.
// Debug entries are kept when verbose is set.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.DisableStacktrace = false
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Adapter exposes a zap logger through the key-value logging methods
// accepted by the library packages.
type Adapter struct {
	sugar *zap.SugaredLogger
}

// Adapt wraps logger.
func Adapt(logger *zap.Logger) Adapter {
	return Adapter{sugar: logger.Sugar()}
}

func (a Adapter) Debug(msg string, args ...any) {
	a.sugar.Debugw(msg, args...)
}

func (a Adapter) Info(msg string, args ...any) {
	a.sugar.Infow(msg, args...)
}

func (a Adapter) Warn(msg string, args ...any) {
	a.sugar.Warnw(msg, args...)
}
