package http_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/farmportal/pkg/authsdk"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestMFAChallenge(t *testing.T) {
	s := newServer(t)
	s.addPrincipal(t, "farmer@example.com", "farmer")
	tokens := s.login(t, "farmer@example.com")

	rec := s.do(t, http.MethodPost, "/v1/auth/mfa/challenge", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ch := decode[authsdk.ChallengeResponse](t, rec)
	require.Equal(t, "OTP dispatched", ch.Message)
	require.NotEmpty(t, ch.MFARequiredFor)

	rec = s.do(t, http.MethodGet, "/v1/users/me", tokens.AccessToken, nil)
	me := decode[authsdk.PrincipalResponse](t, rec)
	require.NotNil(t, me.Audit.LastMFAAt)
}

func TestTOTPEnrollAndVerify(t *testing.T) {
	s := newServer(t)
	s.addPrincipal(t, "farmer@example.com", "farmer")
	tokens := s.login(t, "farmer@example.com")

	rec := s.do(t, http.MethodPost, "/v1/auth/mfa/totp/verify", tokens.AccessToken, authsdk.TOTPVerifyRequest{Code: "123456"})
	requireAPIError(t, rec, authsdk.ErrMFANotEnrolled)

	rec = s.do(t, http.MethodPost, "/v1/auth/mfa/totp/enroll", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	enrollment := decode[authsdk.TOTPEnrollResponse](t, rec)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.OTPAuthURL, "otpauth://totp/")
	require.Equal(t, "Farmer Portal", enrollment.Issuer)
	require.Equal(t, "farmer@example.com", enrollment.Account)

	// A second enrolment from an unverified session would hijack the factor.
	rec = s.do(t, http.MethodPost, "/v1/auth/mfa/totp/enroll", tokens.AccessToken, nil)
	requireAPIError(t, rec, authsdk.ErrMFAAlreadyEnrolled)

	rec = s.do(t, http.MethodPost, "/v1/auth/mfa/totp/verify", tokens.AccessToken, authsdk.TOTPVerifyRequest{Code: "12ab56"})
	requireAPIError(t, rec, authsdk.ErrInvalidRequest)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/v1/auth/mfa/totp/verify", tokens.AccessToken, authsdk.TOTPVerifyRequest{Code: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decode[authsdk.TokenResponse](t, rec)
	require.Empty(t, verified.RefreshToken)

	claims, err := s.codec.Decode(verified.AccessToken)
	require.NoError(t, err)
	require.True(t, claims.MFAVerified())
	require.Equal(t, "farmer", claims.Role)

	rec = s.do(t, http.MethodGet, "/v1/users/me", verified.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[authsdk.PrincipalResponse](t, rec).MFAEnrolled)
	require.NotContains(t, rec.Body.String(), enrollment.Secret)

	// Verified sessions may rotate the secret.
	rec = s.do(t, http.MethodPost, "/v1/auth/mfa/totp/enroll", verified.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEqual(t, enrollment.Secret, decode[authsdk.TOTPEnrollResponse](t, rec).Secret)
}

func TestTOTPRotationNeedsTOTPToken(t *testing.T) {
	s := newServer(t)
	s.addPrincipal(t, "farmer@example.com", "farmer")
	tokens := s.login(t, "farmer@example.com")

	rec := s.do(t, http.MethodPost, "/v1/auth/mfa/totp/enroll", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decode[authsdk.TokenResponse](t, rec)

	claims, err := s.codec.Decode(refreshed.AccessToken)
	require.NoError(t, err)
	require.True(t, claims.MFAVerified())

	// A stolen refresh token must not be able to replace the factor.
	rec = s.do(t, http.MethodPost, "/v1/auth/mfa/totp/enroll", refreshed.AccessToken, nil)
	requireAPIError(t, rec, authsdk.ErrMFAAlreadyEnrolled)
}

func TestTOTPVerifyStepsUpAdmin(t *testing.T) {
	s := newServer(t)
	s.addPrincipal(t, "admin@example.com", "admin")
	tokens := s.login(t, "admin@example.com")

	rec := s.do(t, http.MethodPost, "/v1/auth/mfa/totp/enroll", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	secret := decode[authsdk.TOTPEnrollResponse](t, rec).Secret

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/v1/auth/mfa/totp/verify", tokens.AccessToken, authsdk.TOTPVerifyRequest{Code: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/admin/overview", decode[authsdk.TokenResponse](t, rec).AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMFARoutesNeedBearer(t *testing.T) {
	s := newServer(t)

	for _, path := range []string{
		"/v1/auth/mfa/challenge",
		"/v1/auth/mfa/totp/enroll",
		"/v1/auth/mfa/totp/verify",
		"/v1/auth/logout",
	} {
		rec := s.do(t, http.MethodPost, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Equal(t, `Bearer realm="farmportal"`, rec.Header().Get("WWW-Authenticate"), path)
	}
}
