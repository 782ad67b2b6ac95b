package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the process logger is encoded and which fields are
// attached to every entry.
type Options struct {
	Level       string
	Format      string
	Service     string
	Version     string
	Environment string
}

// New builds the process logger and replaces the zap globals with it.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	name := strings.TrimSpace(opts.Level)
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		cfg.Encoding = "json"
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	cfg.InitialFields = map[string]any{}
	for key, value := range map[string]string{
		"service": opts.Service,
		"version": opts.Version,
		"env":     opts.Environment,
	} {
		if value = strings.TrimSpace(value); value != "" {
			cfg.InitialFields[key] = value
		}
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(log)
	return log, nil
}
