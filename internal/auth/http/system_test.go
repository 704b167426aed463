package http_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/farmportal/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestLivez(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[authsdk.HealthResponse](t, rec)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "test", health.Version)
	require.Nil(t, health.Checks)
}

func TestReadyz(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	health := decode[authsdk.HealthResponse](t, rec)
	require.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Revocations)
}

func TestReadyzDatabaseDown(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.store.Close())

	rec := s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	health := decode[authsdk.HealthResponse](t, rec)
	require.Equal(t, "degraded", health.Status)
	require.Contains(t, health.Checks.Database, "error")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.addPrincipal(t, "farmer@example.com", "farmer")
	s.login(t, "farmer@example.com")

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `farmportal_auth_logins_total{outcome="success"} 1`)
	require.Contains(t, body, `farmportal_http_request_duration_seconds_count{code="200",route="POST /v1/auth/login"} 1`)
}

func TestSwaggerDoc(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/v1/auth/login")
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/v1/auth/login", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
