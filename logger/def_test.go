package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitModes(t *testing.T) {
	require.NoError(t, Init("development", "debug"))
	assert.True(t, Log().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init("production", "warn"))
	assert.False(t, Log().Core().Enabled(zapcore.InfoLevel))
	assert.NotNil(t, S())

	assert.Error(t, Init("production", "loud"))
}

func TestUseAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Use(zap.New(core))
	defer Use(zap.NewNop())

	With(zap.String("request_id", "abc")).Info("hello")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "abc", entry.ContextMap()["request_id"])
	assert.Same(t, Log(), zap.L())
}
