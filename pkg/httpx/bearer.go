package httpx

import (
	"fmt"
	"net/http"
	"strings"
)

// Bearer error codes from RFC 6750 section 3.1.
const (
	BearerInvalidRequest    = "invalid_request"
	BearerInvalidToken      = "invalid_token"
	BearerInsufficientScope = "insufficient_scope"
)

// BearerToken extracts the credential from an "Authorization: Bearer" header.
// The scheme match is case-insensitive and an empty credential is rejected.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// SetBearerChallenge sets the WWW-Authenticate header for a failed bearer
// request. An empty code produces a bare challenge, as RFC 6750 requires when
// no credentials were sent.
func SetBearerChallenge(w http.ResponseWriter, realm, code, desc string) {
	var b strings.Builder
	fmt.Fprintf(&b, `Bearer realm=%q`, realm)
	if code != "" {
		fmt.Fprintf(&b, `, error=%q`, code)
	}
	if desc != "" {
		fmt.Fprintf(&b, `, error_description=%q`, desc)
	}
	w.Header().Set("WWW-Authenticate", b.String())
}
