package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/farmportal/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"surrounding space", "Bearer   abc  ", "abc", true},
		{"missing", "", "", false},
		{"scheme only", "Bearer", "", false},
		{"empty credential", "Bearer    ", "", false},
		{"basic scheme", "Basic dXNlcjpwdw==", "", false},
		{"two credentials", "Bearer abc def", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, ok := httpx.BearerToken(req)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSetBearerChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.SetBearerChallenge(rec, "farmportal", httpx.BearerInvalidToken, "token is invalid")
	require.Equal(t,
		`Bearer realm="farmportal", error="invalid_token", error_description="token is invalid"`,
		rec.Header().Get("WWW-Authenticate"),
	)

	rec = httptest.NewRecorder()
	httpx.SetBearerChallenge(rec, "farmportal", "", "")
	require.Equal(t, `Bearer realm="farmportal"`, rec.Header().Get("WWW-Authenticate"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecover(t *testing.T) {
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), httpx.Recover())

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "server_error")
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Identifier string `json:"identifier"`
	}

	decode := func(raw string) (body, error) {
		var b body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		err := httpx.DecodeJSON(httptest.NewRecorder(), req, &b)
		return b, err
	}

	got, err := decode(`{"identifier":"farmer@example.com"}`)
	require.NoError(t, err)
	require.Equal(t, "farmer@example.com", got.Identifier)

	for _, raw := range []string{
		``,
		`{`,
		`{"identifier":"a","role":"admin"}`,
		`{"identifier":"a"}{"identifier":"b"}`,
		`{"identifier":"` + strings.Repeat("x", httpx.MaxBodyBytes) + `"}`,
	} {
		_, err := decode(raw)
		require.ErrorIs(t, err, httpx.ErrBadRequestBody)
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	require.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}
