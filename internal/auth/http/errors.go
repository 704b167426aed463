package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/farmportal/internal/auth/service"
	"github.com/aussiebroadwan/farmportal/pkg/authsdk"
	"github.com/aussiebroadwan/farmportal/pkg/httpx"
	"github.com/aussiebroadwan/farmportal/pkg/slogx"
)

// Realm is advertised in every bearer challenge.
const Realm = "farmportal"

// writeError maps a service failure to its response. Bearer failures also
// get an RFC 6750 challenge. Anything unrecognised is logged and hidden
// behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)

	case errors.Is(err, service.ErrInvalidToken):
		httpx.SetBearerChallenge(w, Realm, httpx.BearerInvalidToken, "token is invalid")
		authsdk.ErrInvalidToken.WriteError(w)

	case errors.Is(err, service.ErrTokenTypeMismatch):
		httpx.SetBearerChallenge(w, Realm, httpx.BearerInvalidToken, "wrong token type")
		authsdk.ErrTokenTypeMismatch.WriteError(w)

	case errors.Is(err, service.ErrForbidden):
		httpx.SetBearerChallenge(w, Realm, httpx.BearerInsufficientScope, "role not allowed")
		authsdk.ErrForbidden.WriteError(w)

	case errors.Is(err, service.ErrMFAMissing):
		httpx.SetBearerChallenge(w, Realm, httpx.BearerInsufficientScope, "mfa required")
		authsdk.ErrMFARequired.WriteError(w)

	case errors.Is(err, service.ErrPrincipalDisabledOrMissing):
		httpx.SetBearerChallenge(w, Realm, httpx.BearerInvalidToken, "principal unavailable")
		authsdk.ErrPrincipalDisabledOrMissing.WriteError(w)

	case errors.Is(err, service.ErrInvalidTOTPCode):
		authsdk.ErrInvalidCode.WriteError(w)

	case errors.Is(err, service.ErrMFANotEnrolled):
		authsdk.ErrMFANotEnrolled.WriteError(w)

	case errors.Is(err, service.ErrMFAAlreadyEnrolled):
		authsdk.ErrMFAAlreadyEnrolled.WriteError(w)

	case errors.Is(err, httpx.ErrBadRequestBody):
		authsdk.ErrInvalidRequest.WriteError(w)

	default:
		slogx.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// writeMissingBearer answers a request that sent no usable credentials.
func writeMissingBearer(w http.ResponseWriter) {
	httpx.SetBearerChallenge(w, Realm, "", "")
	authsdk.ErrInvalidToken.WriteError(w)
}
