package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/farmportal/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, level string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{
		Service: "auth",
		Version: "test",
		Env:     "test",
		Level:   level,
		Format:  "json",
		Output:  &buf,
	})
	return logger, &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestRedactsSensitiveAttributes(t *testing.T) {
	logger, buf := newBufferedLogger(t, "debug")

	logger.Info("login",
		"identifier", "farmer@example.com",
		"password", "hunter2",
		"access_token", "eyJhbGciOi",
		slog.Group("req", slog.String("Authorization", "Bearer abc")),
	)

	out := buf.String()
	require.NotContains(t, out, "hunter2")
	require.NotContains(t, out, "eyJhbGciOi")
	require.NotContains(t, out, "Bearer abc")

	entry := lastLine(t, buf)
	require.Equal(t, "farmer@example.com", entry["identifier"])
	require.Equal(t, slogx.Redacted, entry["password"])
	require.Equal(t, "auth", entry["service"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, slogx.ParseLevel(in), "level %q", in)
	}
}

func TestLevelFilters(t *testing.T) {
	logger, buf := newBufferedLogger(t, "warn")
	logger.Info("hidden")
	require.Empty(t, buf.String())

	logger.Warn("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	require.Equal(t, slog.Default(), slogx.FromContext(context.Background()))
}

func TestHTTPMiddleware(t *testing.T) {
	logger, buf := newBufferedLogger(t, "info")

	var inner *slog.Logger
	h := slogx.HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = slogx.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/me", nil))

		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Len(t, rec.Header().Get(slogx.RequestIDHeader), 26)
		require.NotNil(t, inner)

		entry := lastLine(t, buf)
		require.Equal(t, "http_request", entry["msg"])
		require.Equal(t, float64(http.StatusTeapot), entry["status"])
		require.Equal(t, "/v1/users/me", entry["path"])
	})

	t.Run("echoes caller request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/livez", nil)
		req.Header.Set(slogx.RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, "abc-123", rec.Header().Get(slogx.RequestIDHeader))
		require.Equal(t, "abc-123", lastLine(t, buf)["req_id"])
	})
}
