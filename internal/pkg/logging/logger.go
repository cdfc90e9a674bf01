// Package logging builds the process-wide zap logger. Every entry is a JSON line
// carrying service and env so logs from several storefront replicas can be merged.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Trace placeholders for lines emitted outside any request, such as startup and shutdown.
const (
	SystemTraceID = "system"
	SystemSpanID  = "system"

	unknownID = "unknown"
)

type Options struct {
	Service string
	Env     string
	// Level is a zap level name ("debug", "info", ...). Empty means info.
	Level string
	// File also receives every line when set. Missing parent directories are created.
	File string
}

func NewLogger(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		parsed, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	sinks := []string{"stdout"}
	if opts.File != "" {
		if err := touch(opts.File); err != nil {
			return nil, fmt.Errorf("log file %s: %w", opts.File, err)
		}
		sinks = append(sinks, opts.File)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = sinks
	cfg.ErrorOutputPaths = sinks
	cfg.EncoderConfig = encoderConfig()
	cfg.InitialFields = map[string]any{"service": opts.Service, "env": opts.Env}
	return cfg.Build()
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.MessageKey = "msg"
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	return ec
}

// WithTrace pins trace_id and span_id on logger. Empty IDs become "unknown" so the
// fields are always present for log queries that join on them.
func WithTrace(logger *zap.Logger, traceID, spanID string) *zap.Logger {
	if logger == nil {
		logger = zap.L()
	}
	return logger.With(
		zap.String("trace_id", orUnknown(traceID)),
		zap.String("span_id", orUnknown(spanID)),
	)
}

func orUnknown(id string) string {
	if id == "" {
		return unknownID
	}
	return id
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
