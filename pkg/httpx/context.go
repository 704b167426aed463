package httpx

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// WithSubject records the authenticated principal id on ctx so later
// middleware (rate limiting, logging) can key on it.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKey{}, subject)
}

// SubjectFromContext returns the principal id stored by WithSubject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKey{}).(string)
	return s, ok && s != ""
}

// SubjectKeyExtractor keys requests on the authenticated principal.
func SubjectKeyExtractor(r *http.Request) string {
	s, _ := SubjectFromContext(r.Context())
	return s
}
