package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerCarriesTraceAndTenant(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", "json", &buf)

	ctx := ContextWithTraceID(context.Background(), "trace-123")
	log.WithContext(ctx).WithTenant("client_A").Info("recorded execution", "test_case_id", "TC_1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "recorded execution", entry["msg"])
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "client_A", entry["hospital"])
	assert.Equal(t, "TC_1", entry["test_case_id"])
}

func TestWithContextWithoutTraceReturnsSameLogger(t *testing.T) {
	log := Discard()
	assert.Same(t, log, log.WithContext(context.Background()))
}

func TestErrorAddsStack(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", "json", &buf)

	log.Error("store unreachable", "error", "timeout")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotEmpty(t, entry["stack"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", "json", &buf)

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestNewWithFileWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teststate.log")
	log := NewWithFile("info", "json", path)

	log.Info("hello file")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}
