// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the process-wide logger. It is a no-op until InitLogger runs. L is not
// synchronized: replace it only during startup, before other goroutines log.
var L = zap.NewNop()

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// InitLogger builds a logger with New and installs it as L and as zap's
// global logger. It may be called again once configuration is known.
func InitLogger(development bool) error {
	logger, err := New(development)
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// SetLogger replaces L and zap's global logger. Like InitLogger it belongs to
// process startup.
func SetLogger(logger *zap.Logger) {
	L = logger
	zap.ReplaceGlobals(logger)
}
