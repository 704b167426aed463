package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/aussiebroadwan/farmportal/pkg/authsdk"
	"github.com/aussiebroadwan/farmportal/pkg/httpx"
)

// Pinger is a dependency readiness can probe. The redis revocation registry
// implements it; the SQL registry shares the store's connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the directory database and, when separate, the revocation registry
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"a dependency is unavailable"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, revs store.Revocations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database:    "ok",
			Revocations: "ok",
		}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		switch p := revs.(type) {
		case nil, store.NopRevocations:
			checks.Revocations = "disabled"
		case Pinger:
			if err := p.Ping(r.Context()); err != nil {
				checks.Revocations = "error: " + err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
