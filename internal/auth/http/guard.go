package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/service"
	"github.com/aussiebroadwan/farmportal/pkg/httpx"
	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
	"github.com/aussiebroadwan/farmportal/pkg/slogx"
)

type sessionKey struct{}

// authSession is what the guard leaves on the request context.
type authSession struct {
	principal domain.Principal
	claims    jwtx.Claims
}

func withSession(ctx context.Context, s authSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) (authSession, bool) {
	s, ok := ctx.Value(sessionKey{}).(authSession)
	return s, ok
}

// RequirePolicy authenticates the bearer token and enforces ap before the
// wrapped handler runs.
func RequirePolicy(sessions *service.SessionService, ap domain.AccessPolicy) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := httpx.BearerToken(r)
			if !ok {
				writeMissingBearer(w)
				return
			}

			p, claims, err := sessions.Authorize(r.Context(), token, ap)
			if err != nil {
				slogx.FromContext(r.Context()).Info("request not authorized", "path", r.URL.Path, "reason", err.Error())
				writeError(w, r, err)
				return
			}

			ctx := withSession(r.Context(), authSession{principal: p, claims: claims})
			ctx = httpx.WithSubject(ctx, p.ID)
			ctx = slogx.With(ctx, "principal_id", p.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
