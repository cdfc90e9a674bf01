package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(Options{Service: "storefront", Level: "chatty"})
	assert.Error(t, err)
}

func TestNewLoggerCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "storefront.log")
	l, err := NewLogger(Options{Service: "storefront", Env: "test", Level: "debug", File: path})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.FileExists(t, path)
}

func TestWithTraceFillsUnknown(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	WithTrace(zap.New(core), SystemTraceID, "").Info("http_server_start")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "system", ctx["trace_id"])
	assert.Equal(t, "unknown", ctx["span_id"])
}
