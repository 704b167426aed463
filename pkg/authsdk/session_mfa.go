package authsdk

import (
	"context"
	"net/http"
)

// MFAChallenge asks the service to dispatch a second-factor challenge.
func (s *Session) MFAChallenge(ctx context.Context) (*ChallengeResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/mfa/challenge", nil)
	if err != nil {
		return nil, err
	}

	var challenge ChallengeResponse
	if err := decodeJSON(resp, &challenge, http.StatusOK); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// EnrollTOTP creates a TOTP secret for the principal.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/mfa/totp/enroll", nil)
	if err != nil {
		return nil, err
	}

	var enroll TOTPEnrollResponse
	if err := decodeJSON(resp, &enroll, http.StatusOK); err != nil {
		return nil, err
	}
	return &enroll, nil
}

// VerifyTOTP submits code and, on success, swaps the session's access token
// for the MFA-verified one.
func (s *Session) VerifyTOTP(ctx context.Context, code string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/mfa/totp/verify", TOTPVerifyRequest{Code: code})
	if err != nil {
		return err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return err
	}

	s.mu.Lock()
	s.setAccessLocked(&tokenResp)
	s.mu.Unlock()
	return nil
}
