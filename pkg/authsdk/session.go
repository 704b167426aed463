package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// refreshSkew renews the access token this long before it expires.
const refreshSkew = 30 * time.Second

var ErrNoRefreshToken = errors.New("authsdk: access token expired and no refresh token available")

// Session holds the tokens of one login and refreshes the access token
// automatically. Safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	return &Session{
		client:       client,
		accessToken:  tokenResp.AccessToken,
		refreshToken: tokenResp.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - refreshSkew),
	}
}

// getValidToken returns the access token, refreshing it first if needed.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return ErrNoRefreshToken
	}

	tokenResp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.setAccessLocked(tokenResp)
	return nil
}

func (s *Session) setAccessLocked(tokenResp *TokenResponse) {
	s.accessToken = tokenResp.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - refreshSkew)
}

// Refresh replaces the access token now, regardless of its expiry. The
// refreshed token is MFA-verified.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the refresh token issued at login.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Me returns the authenticated principal.
func (s *Session) Me(ctx context.Context) (*PrincipalResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/users/me", nil)
	if err != nil {
		return nil, err
	}

	var me PrincipalResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// AdminOverview calls the admin-only endpoint. It needs the admin role and
// an MFA-verified access token.
func (s *Session) AdminOverview(ctx context.Context) (*AdminOverviewResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/admin/overview", nil)
	if err != nil {
		return nil, err
	}

	var overview AdminOverviewResponse
	if err := decodeJSON(resp, &overview, http.StatusOK); err != nil {
		return nil, err
	}
	return &overview, nil
}

// Logout revokes the access token and the refresh token. The session is
// unusable afterwards.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/logout", LogoutRequest{
		RefreshToken: s.RefreshToken(),
	})
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return nil
}
