package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Writer: &buf, Component: "user"})

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "u-1")
	l.WithContext(ctx).WithError(errors.New("boom")).Info("hello")

	m := decodeLine(t, &buf)
	assert.Equal(t, "user", m["component"])
	assert.Equal(t, "req-1", m["request_id"])
	assert.Equal(t, "u-1", m["user_id"])
	assert.Equal(t, "boom", m["error"])
}

func TestHTTPRequestLog_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Writer: &buf})

	l.HTTPRequestLog("GET", "/x", 503, 12*time.Millisecond, "127.0.0.1")
	m := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", m["level"])
	assert.EqualValues(t, 503, m["status"])
}

func TestAuthLog_FailureIsWarn(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Writer: &buf})

	l.AuthLog("login", "zhangsan", false, slog.String("reason", "bad password"))
	m := decodeLine(t, &buf)
	assert.Equal(t, "WARN", m["level"])
	assert.Equal(t, "zhangsan", m["username"])
	assert.Equal(t, "bad password", m["reason"])
}
