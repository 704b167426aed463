package http

import (
	"net/http"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/service"
	"github.com/aussiebroadwan/farmportal/pkg/authsdk"
	"github.com/aussiebroadwan/farmportal/pkg/httpx"
	"github.com/aussiebroadwan/farmportal/pkg/slogx"
	"github.com/go-playground/validator/v10"
)

// SessionHandler serves login, refresh and logout.
type SessionHandler struct {
	Sessions *service.SessionService
	Validate *validator.Validate
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in with identifier and password
//	@Description	Returns an access token (mfa=false) and a refresh token. Unknown identifiers and wrong passwords produce the same error.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse	"Access and refresh tokens"
//	@Failure		400		{object}	authsdk.APIError		"Malformed request"
//	@Failure		401		{object}	authsdk.APIError		"invalid_credentials or principal_disabled_or_missing"
//	@Failure		429		{object}	authsdk.APIError		"Rate limited"
//	@Router			/v1/auth/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeAndValidate(w, r, h.Validate, &req) {
		return
	}

	pair, err := h.Sessions.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Exchange a refresh token
//	@Description	Returns a new access token for the refresh token's principal. The new access token is MFA-verified.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse	"Access token"
//	@Failure		400		{object}	authsdk.APIError		"Malformed request"
//	@Failure		401		{object}	authsdk.APIError		"invalid_token, token_type_mismatch or invalid_credentials"
//	@Router			/v1/auth/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decodeAndValidate(w, r, h.Validate, &req) {
		return
	}

	pair, err := h.Sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Revoke the current session
//	@Description	Revokes the bearer access token and, if given, the refresh token from the same login.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.LogoutRequest	false	"Refresh token to revoke"
//	@Success		204
//	@Failure		400	{object}	authsdk.APIError	"Malformed request"
//	@Failure		401	{object}	authsdk.APIError	"Invalid or missing access token"
//	@Router			/v1/auth/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeMissingBearer(w)
		return
	}

	var req authsdk.LogoutRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := h.Sessions.Logout(r.Context(), sess.claims, req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("logged out")
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func tokenResponse(pair domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	}
}

// decodeAndValidate reads a JSON body into dst and checks its validate
// tags. It writes the 400 itself and reports false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	if err := v.Struct(dst); err != nil {
		slogx.FromContext(r.Context()).Warn("request failed validation", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	return true
}
