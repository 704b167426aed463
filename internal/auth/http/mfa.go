package http

import (
	"net/http"

	"github.com/aussiebroadwan/farmportal/internal/auth/service"
	"github.com/aussiebroadwan/farmportal/pkg/authsdk"
	"github.com/aussiebroadwan/farmportal/pkg/httpx"
	"github.com/go-playground/validator/v10"
)

// MFAHandler serves the step-up endpoints.
type MFAHandler struct {
	MFAService *service.MFAService
	Validate   *validator.Validate
}

// HandleChallenge handles POST /v1/auth/mfa/challenge
//
//	@Summary		Request a second-factor challenge
//	@Description	Records the challenge on the principal. Delivery of the one-time code happens out of band.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ChallengeResponse	"Challenge acknowledged"
//	@Failure		401	{object}	authsdk.APIError			"Invalid or missing access token"
//	@Router			/v1/auth/mfa/challenge [post].
func (h *MFAHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeMissingBearer(w)
		return
	}

	ch, err := h.MFAService.Challenge(r.Context(), sess.principal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ChallengeResponse{
		Message:        ch.Message,
		MFARequiredFor: ch.MFARequiredFor,
	})
}

// HandleEnroll handles POST /v1/auth/mfa/totp/enroll
//
//	@Summary		Enroll a TOTP authenticator
//	@Description	Generates a TOTP secret for the principal. Replacing an existing secret needs a token issued by TOTP verification.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse	"TOTP secret and otpauth URL"
//	@Failure		401	{object}	authsdk.APIError			"Invalid or missing access token"
//	@Failure		409	{object}	authsdk.APIError			"Already enrolled"
//	@Router			/v1/auth/mfa/totp/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeMissingBearer(w)
		return
	}

	enrollment, err := h.MFAService.EnrollTOTP(r.Context(), sess.principal, sess.claims.TOTPVerified())
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret:     enrollment.Secret,
		OTPAuthURL: enrollment.URL,
		Issuer:     enrollment.Issuer,
		Account:    enrollment.Account,
	})
}

// HandleVerify handles POST /v1/auth/mfa/totp/verify
//
//	@Summary		Verify a TOTP code
//	@Description	On success returns a new access token with mfa=true.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TOTPVerifyRequest	true	"TOTP code"
//	@Success		200		{object}	authsdk.TokenResponse		"MFA-verified access token"
//	@Failure		400		{object}	authsdk.APIError			"Invalid code or not enrolled"
//	@Failure		401		{object}	authsdk.APIError			"Invalid or missing access token"
//	@Failure		429		{object}	authsdk.APIError			"Rate limited"
//	@Router			/v1/auth/mfa/totp/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeMissingBearer(w)
		return
	}

	var req authsdk.TOTPVerifyRequest
	if !decodeAndValidate(w, r, h.Validate, &req) {
		return
	}

	pair, err := h.MFAService.VerifyTOTP(r.Context(), sess.principal, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}
