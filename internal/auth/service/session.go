package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/metrics"
	"github.com/aussiebroadwan/farmportal/internal/auth/policy"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/aussiebroadwan/farmportal/pkg/cryptox"
	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
	"github.com/aussiebroadwan/farmportal/pkg/slogx"
)

// SessionService issues and checks tokens. It holds no per-session state;
// the directory and the revocation registry are the only stores it touches.
type SessionService struct {
	Store       store.Store
	Codec       *jwtx.Codec
	Revocations store.Revocations // nil disables revocation
	Metrics     *metrics.Metrics
	AccessTTL   time.Duration // zero means jwtx.AccessTokenTTL
	RefreshTTL  time.Duration // zero means jwtx.RefreshTokenTTL
}

var (
	dummyHashMu sync.Mutex
	dummyHash   string
)

// equaliserHash returns the hash burnPasswordCheck verifies against. A
// failed attempt is not cached, so the next miss tries again.
func equaliserHash() (string, error) {
	dummyHashMu.Lock()
	defer dummyHashMu.Unlock()

	if dummyHash == "" {
		hash, err := cryptox.HashPassword("farmportal-timing-equaliser")
		if err != nil {
			return "", err
		}
		dummyHash = hash
	}
	return dummyHash, nil
}

// burnPasswordCheck spends the same work as a real verification so a missing
// principal cannot be told apart by response time.
func burnPasswordCheck(ctx context.Context, secret string) {
	hash, err := equaliserHash()
	if err != nil {
		slogx.FromContext(ctx).Error("timing equaliser hash unavailable", slog.Any("error", err))
		return
	}
	_ = cryptox.VerifyPassword(secret, hash)
}

// Login verifies identifier and secret and returns a fresh access/refresh
// pair. The access token never carries mfa=true.
func (s *SessionService) Login(ctx context.Context, identifier, secret string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := s.Codec.Now()

	// 1. Look the principal up. A miss and a bad password are the same error.
	p, err := s.Store.Principals().FindByIdentifier(ctx, domain.NormalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnPasswordCheck(ctx, secret)
			s.Metrics.Login(metrics.OutcomeInvalidCredentials)
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		s.Metrics.Login(metrics.OutcomeError)
		return domain.TokenPair{}, fmt.Errorf("find principal: %w", err)
	}

	if !cryptox.VerifyPassword(secret, p.PasswordHash) {
		s.Metrics.Login(metrics.OutcomeInvalidCredentials)
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	// 2. Only a caller who knows the password learns the account is disabled.
	if !p.Active() {
		l.Info("login refused for disabled principal", slog.String("principal_id", p.ID))
		s.Metrics.Login(metrics.OutcomeDisabled)
		return domain.TokenPair{}, ErrPrincipalDisabledOrMissing
	}

	// 3. Mint the pair with the primary role as the token's role snapshot.
	access, err := s.Codec.Encode(jwtx.NewAccessClaims(p.ID, p.Roles.Primary().String(), false), s.accessTTL())
	if err != nil {
		s.Metrics.Login(metrics.OutcomeError)
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Codec.Encode(jwtx.NewRefreshClaims(p.ID), s.refreshTTL())
	if err != nil {
		s.Metrics.Login(metrics.OutcomeError)
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	// 4. Audit and rehash are best effort; the login already succeeded.
	if err := s.Store.Principals().UpdateAuditField(ctx, p.ID, domain.AuditLastLogin, now); err != nil {
		l.Warn("failed to record last login", slog.String("principal_id", p.ID), slog.Any("error", err))
	}
	if cryptox.NeedsRehash(p.PasswordHash) {
		s.rehash(ctx, p.ID, secret, now)
	}

	s.Metrics.Login(metrics.OutcomeSuccess)
	l.Info("login succeeded", slog.String("principal_id", p.ID), slog.String("role", p.Roles.Primary().String()))

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    domain.TokenTypeBearer,
		ExpiresIn:    s.accessTTL(),
	}, nil
}

func (s *SessionService) rehash(ctx context.Context, id, secret string, now time.Time) {
	l := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(secret)
	if err != nil {
		l.Warn("failed to rehash password", slog.String("principal_id", id), slog.Any("error", err))
		return
	}
	if err := s.Store.Principals().UpdatePasswordHash(ctx, id, hash, now); err != nil {
		l.Warn("failed to store rehashed password", slog.String("principal_id", id), slog.Any("error", err))
		return
	}
	l.Info("password rehashed", slog.String("principal_id", id))
}

// Refresh exchanges a refresh token for a new access token. The refreshed
// token is marked mfa=true and carries the principal's current primary role.
// The returned pair has no refresh token.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.Codec.Decode(refreshToken)
	if err != nil {
		s.Metrics.Refresh(metrics.OutcomeInvalidToken)
		return domain.TokenPair{}, err
	}
	if err := policy.RequireTokenType(claims, jwtx.TokenTypeRefresh); err != nil {
		s.Metrics.Refresh(metrics.OutcomeTypeMismatch)
		return domain.TokenPair{}, err
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		s.Metrics.Refresh(metrics.OutcomeError)
		return domain.TokenPair{}, err
	}
	if revoked {
		s.Metrics.Refresh(metrics.OutcomeRevoked)
		return domain.TokenPair{}, ErrInvalidToken
	}

	p, err := s.Store.Principals().GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.Refresh(metrics.OutcomeInvalidCredentials)
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		s.Metrics.Refresh(metrics.OutcomeError)
		return domain.TokenPair{}, fmt.Errorf("get principal: %w", err)
	}
	if !p.Active() {
		s.Metrics.Refresh(metrics.OutcomeDisabled)
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	access, err := s.Codec.Encode(jwtx.NewAccessClaims(p.ID, p.Roles.Primary().String(), true), s.accessTTL())
	if err != nil {
		s.Metrics.Refresh(metrics.OutcomeError)
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	s.Metrics.Refresh(metrics.OutcomeSuccess)
	return domain.TokenPair{
		AccessToken: access,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   s.accessTTL(),
	}, nil
}

// Authorize is the guard in front of every protected operation. Checks run
// in order: decode, revocation, token type, role, MFA, then the principal
// must still exist and be enabled.
func (s *SessionService) Authorize(ctx context.Context, bearer string, ap domain.AccessPolicy) (domain.Principal, jwtx.Claims, error) {
	claims, err := s.Codec.Decode(bearer)
	if err != nil {
		s.Metrics.Authorize(metrics.OutcomeInvalidToken)
		return domain.Principal{}, jwtx.Claims{}, err
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		s.Metrics.Authorize(metrics.OutcomeError)
		return domain.Principal{}, jwtx.Claims{}, err
	}
	if revoked {
		s.Metrics.Authorize(metrics.OutcomeRevoked)
		return domain.Principal{}, jwtx.Claims{}, ErrInvalidToken
	}

	if err := policy.Authorize(claims, ap); err != nil {
		s.Metrics.Authorize(policyOutcome(err))
		return domain.Principal{}, jwtx.Claims{}, err
	}

	p, err := s.Store.Principals().GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.Authorize(metrics.OutcomeDisabled)
			return domain.Principal{}, jwtx.Claims{}, ErrPrincipalDisabledOrMissing
		}
		s.Metrics.Authorize(metrics.OutcomeError)
		return domain.Principal{}, jwtx.Claims{}, fmt.Errorf("get principal: %w", err)
	}
	if !p.Active() {
		s.Metrics.Authorize(metrics.OutcomeDisabled)
		return domain.Principal{}, jwtx.Claims{}, ErrPrincipalDisabledOrMissing
	}

	s.Metrics.Authorize(metrics.OutcomeSuccess)
	return p, claims, nil
}

// Logout revokes the access token described by access and, when given, the
// refresh token. The refresh token must belong to the same subject.
func (s *SessionService) Logout(ctx context.Context, access jwtx.Claims, refreshToken string) error {
	revs := s.revocations()

	if err := revs.Revoke(ctx, access.ID, access.ExpiresAtTime()); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if refreshToken == "" {
		return nil
	}

	claims, err := s.Codec.Decode(refreshToken)
	if err != nil {
		return err
	}
	if err := policy.RequireTokenType(claims, jwtx.TokenTypeRefresh); err != nil {
		return err
	}
	if claims.Subject != access.Subject {
		return ErrInvalidToken
	}
	if err := revs.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	slogx.FromContext(ctx).Info("session revoked", slog.String("principal_id", access.Subject))
	return nil
}

func (s *SessionService) isRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := s.revocations().IsRevoked(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

func (s *SessionService) revocations() store.Revocations {
	if s.Revocations == nil {
		return store.NopRevocations{}
	}
	return s.Revocations
}

func (s *SessionService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.AccessTokenTTL
}

func (s *SessionService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.RefreshTokenTTL
}

func policyOutcome(err error) string {
	switch {
	case errors.Is(err, policy.ErrTokenTypeMismatch):
		return metrics.OutcomeTypeMismatch
	case errors.Is(err, policy.ErrForbidden):
		return metrics.OutcomeForbidden
	case errors.Is(err, policy.ErrMFAMissing):
		return metrics.OutcomeMFAMissing
	default:
		return metrics.OutcomeError
	}
}
