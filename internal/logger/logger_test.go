package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesCategoryAndMessage(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := New(&buf)

	l.LogRedemption("COMMIT", "b1", "redeemed")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "[REDEEM")
	assert.Contains(t, out, "[COMMIT] b1 - redeemed")
	assert.Contains(t, out, "logger_test.go")
}

func TestLoggerLevelFilter(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := New(&buf)
	l.SetLevel(WARN)

	l.Info("APP", "hidden")
	l.Warn("APP", "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir, "redemption")
	l.terminal = &bytes.Buffer{}
	l.Error("DATABASE", "connection refused")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "redemption-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Category == "DATABASE" {
			found = true
			assert.Equal(t, "ERROR", entry.Level)
			assert.Equal(t, "connection refused", entry.Message)
		}
	}
	assert.True(t, found)
}

func TestMiddlewareLogsStatus(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := New(&buf)

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/scanner/commit", nil))

	out := buf.String()
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "POST /api/scanner/commit - 503")
}

func TestLevelToStringOutOfRange(t *testing.T) {
	assert.Equal(t, "INFO", levelToString(LogLevel(42)))
	assert.Equal(t, "FATAL", levelToString(FATAL))
}
