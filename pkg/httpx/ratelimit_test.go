package httpx_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/farmportal/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func loginRequest(addr, identifier string) *http.Request {
	body := fmt.Sprintf(`{"identifier":%q,"password":"pw"}`, identifier)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = addr
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRemoteIPKeyExtractor(t *testing.T) {
	req := requestFrom("192.168.1.1:12345")
	req.Header.Set("X-Forwarded-For", "203.0.113.1")

	require.Equal(t, "192.168.1.1", httpx.RemoteIPKeyExtractor(req), "forwarded headers are ignored")
}

func TestForwardedIPKeyExtractor(t *testing.T) {
	t.Run("prefers first X-Forwarded-For hop", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.ForwardedIPKeyExtractor(req))
	})

	t.Run("falls back to X-Real-IP", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.ForwardedIPKeyExtractor(req))
	})

	t.Run("falls back to peer", func(t *testing.T) {
		require.Equal(t, "192.168.1.1", httpx.ForwardedIPKeyExtractor(requestFrom("192.168.1.1:12345")))
	})
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	extract := httpx.JSONFieldKeyExtractor("identifier")

	t.Run("reads and restores body", func(t *testing.T) {
		req := loginRequest("10.0.0.1:1", "Farmer@Example.com")
		require.Equal(t, "farmer@example.com", extract(req))

		var body map[string]string
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, "Farmer@Example.com", body["identifier"])
	})

	t.Run("missing field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password":"x"}`))
		require.Empty(t, extract(req))
	})

	t.Run("not json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`identifier=x`))
		require.Empty(t, extract(req))
	})

	t.Run("non string field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"identifier":42}`))
		require.Empty(t, extract(req))
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	extract := httpx.CompositeKeyExtractor(":",
		httpx.RemoteIPKeyExtractor,
		httpx.JSONFieldKeyExtractor("identifier"),
	)

	require.Equal(t, "10.0.0.1:alice", extract(loginRequest("10.0.0.1:1", "alice")))
	require.Equal(t, "10.0.0.1", extract(requestFrom("10.0.0.1:1")))
}

func TestSubjectKeyExtractor(t *testing.T) {
	req := requestFrom("10.0.0.1:1")
	require.Empty(t, httpx.SubjectKeyExtractor(req))

	req = req.WithContext(httpx.WithSubject(req.Context(), "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"))
	require.Equal(t, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", httpx.SubjectKeyExtractor(req))
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("allows burst then blocks", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimit{Requests: 3, Window: time.Minute, Burst: 3})(okHandler)

		for i := range 3 {
			require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.1:1")).Code, "request %d", i+1)
		}

		rec := serve(h, requestFrom("192.168.1.1:1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "20", rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		require.Contains(t, rec.Body.String(), "rate_limited")
	})

	t.Run("keys are independent", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimit{Requests: 1, Window: time.Minute, Burst: 1})(okHandler)

		require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.1:1")).Code)
		require.Equal(t, http.StatusTooManyRequests, serve(h, requestFrom("192.168.1.1:1")).Code)
		require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.2:1")).Code)
	})

	t.Run("empty key bypasses limiter", func(t *testing.T) {
		none := func(*http.Request) string { return "" }
		h := httpx.RateLimitMiddleware(httpx.RateLimit{Requests: 1, Window: time.Minute, Burst: 1}, none)(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.1:1")).Code)
		}
	})
}

func TestRateLimitByIPAndIdentifier(t *testing.T) {
	var seen []string
	h := httpx.RateLimitByIPAndIdentifier(
		httpx.RateLimit{Requests: 2, Window: time.Minute, Burst: 2}, "identifier",
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Identifier string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		seen = append(seen, body.Identifier)
		w.WriteHeader(http.StatusOK)
	}))

	require.Equal(t, http.StatusOK, serve(h, loginRequest("10.0.0.1:1", "alice")).Code)
	require.Equal(t, http.StatusOK, serve(h, loginRequest("10.0.0.1:1", "ALICE")).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h, loginRequest("10.0.0.1:1", "alice")).Code)
	require.Equal(t, http.StatusOK, serve(h, loginRequest("10.0.0.1:1", "bob")).Code)

	require.Equal(t, []string{"alice", "ALICE", "bob"}, seen, "handler still sees the original body")
}

func TestRateLimitBySubject(t *testing.T) {
	h := httpx.RateLimitBySubject(httpx.RateLimit{Requests: 1, Window: time.Minute, Burst: 1})(okHandler)

	as := func(subject string) *http.Request {
		req := requestFrom("10.0.0.1:1")
		return req.WithContext(httpx.WithSubject(req.Context(), subject))
	}

	require.Equal(t, http.StatusOK, serve(h, as("p1")).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h, as("p1")).Code)
	require.Equal(t, http.StatusOK, serve(h, as("p2")).Code, "same address, different principal")
}

func TestRateLimitProfiles(t *testing.T) {
	profiles := []httpx.RateLimit{httpx.LoginLimit, httpx.TokenLimit, httpx.SessionLimit, httpx.ProbeLimit}
	for _, p := range profiles {
		require.Positive(t, p.Requests)
		require.Positive(t, p.Window)
		require.Positive(t, p.Burst)
	}

	require.Less(t, httpx.LoginLimit.Requests, httpx.TokenLimit.Requests)
	require.Less(t, httpx.TokenLimit.Requests, httpx.SessionLimit.Requests)
	require.Less(t, httpx.SessionLimit.Requests, httpx.ProbeLimit.Requests)
}

func BenchmarkRateLimitManyIPs(b *testing.B) {
	h := httpx.RateLimitByIP(httpx.RateLimit{Requests: 1_000_000, Window: time.Minute, Burst: 1000})(okHandler)

	for i := 0; b.Loop(); i++ {
		req := requestFrom(fmt.Sprintf("192.168.%d.%d:1", i%255, (i/255)%255))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}
