package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewCoreWritesJSONWithTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger := zap.New(newCore(Config{Level: "debug"}, zapcore.AddSync(&buf)))

	FromContext(ContextWithRequestID(context.Background(), "req-1"), logger).Debug("hello", zap.Int("streak", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "req-1", entry["request_id"])
	require.EqualValues(t, 3, entry["streak"])
	require.Contains(t, entry, "timestamp")
}

func TestNewCoreFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := zap.New(newCore(Config{Level: "loud"}, zapcore.AddSync(&buf)))

	logger.Debug("dropped")
	require.Zero(t, buf.Len())

	logger.Info("kept")
	require.NotZero(t, buf.Len())
}
