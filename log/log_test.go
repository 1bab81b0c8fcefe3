package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: 4}, &buf)

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown", "table", "orders")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "orders", line["table"])
}

func TestInterceptorLogger(t *testing.T) {
	var buf bytes.Buffer
	il := InterceptorLogger(New(Config{}, &buf))

	il.Log(context.Background(), logging.LevelError, "grpc call failed", "method", "Check")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "Check", line["method"])
}
