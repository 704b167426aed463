package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/metrics"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/aussiebroadwan/farmportal/pkg/cryptox"
	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
	"github.com/aussiebroadwan/farmportal/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
)

// ChallengeMessage is returned by every challenge. Delivery itself happens
// outside this service.
const ChallengeMessage = "OTP dispatched"

// Challenge acknowledges a step-up request.
type Challenge struct {
	Message        string
	MFARequiredFor string
}

// TOTPEnrollment is shown to the principal once, at enrolment.
type TOTPEnrollment struct {
	Secret  string
	URL     string
	Issuer  string
	Account string
}

type MFAService struct {
	Store     store.Store
	Codec     *jwtx.Codec
	Sealer    *cryptox.Sealer
	Metrics   *metrics.Metrics
	Issuer    string        // shown in authenticator apps, e.g. "Farmer Portal"
	AccessTTL time.Duration // zero means jwtx.AccessTokenTTL
}

// Challenge records that a second factor was requested for p. It does not
// change any token.
func (s *MFAService) Challenge(ctx context.Context, p domain.Principal) (Challenge, error) {
	if err := s.Store.Principals().UpdateAuditField(ctx, p.ID, domain.AuditLastMFA, s.Codec.Now()); err != nil {
		return Challenge{}, fmt.Errorf("record mfa challenge: %w", err)
	}

	slogx.FromContext(ctx).Info("mfa challenge requested", slog.String("principal_id", p.ID))
	return Challenge{Message: ChallengeMessage, MFARequiredFor: p.Identifier}, nil
}

// EnrollTOTP generates a TOTP secret for p and stores it sealed. An existing
// secret is only replaced when the caller's token came from a TOTP check;
// a refreshed mfa=true token is not enough.
func (s *MFAService) EnrollTOTP(ctx context.Context, p domain.Principal, totpVerified bool) (TOTPEnrollment, error) {
	if p.MFAEnrolled() && !totpVerified {
		return TOTPEnrollment{}, ErrMFAAlreadyEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: p.Identifier,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	sealed, err := s.Sealer.Seal([]byte(key.Secret()))
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("failed to seal TOTP secret: %w", err)
	}

	if err := s.Store.Principals().UpdateMFASecret(ctx, p.ID, &sealed, s.Codec.Now()); err != nil {
		return TOTPEnrollment{}, fmt.Errorf("failed to store MFA secret: %w", err)
	}

	slogx.FromContext(ctx).Info("totp enrolled", slog.String("principal_id", p.ID))
	return TOTPEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: p.Identifier,
	}, nil
}

// VerifyTOTP checks code against p's secret and, on success, issues an access
// token with mfa=true.
func (s *MFAService) VerifyTOTP(ctx context.Context, p domain.Principal, code string) (domain.TokenPair, error) {
	if !p.MFAEnrolled() {
		s.Metrics.MFAVerify(metrics.OutcomeMFAMissing)
		return domain.TokenPair{}, ErrMFANotEnrolled
	}

	secret, err := s.Sealer.Open(*p.MFASecret)
	if err != nil {
		s.Metrics.MFAVerify(metrics.OutcomeError)
		return domain.TokenPair{}, fmt.Errorf("failed to open MFA secret: %w", err)
	}

	now := s.Codec.Now()
	valid, err := totp.ValidateCustom(code, string(secret), now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil && !errors.Is(err, otp.ErrValidateInputInvalidLength) {
		s.Metrics.MFAVerify(metrics.OutcomeError)
		return domain.TokenPair{}, fmt.Errorf("validate TOTP code: %w", err)
	}
	if !valid {
		s.Metrics.MFAVerify(metrics.OutcomeInvalidCredentials)
		return domain.TokenPair{}, ErrInvalidTOTPCode
	}

	if err := s.Store.Principals().UpdateAuditField(ctx, p.ID, domain.AuditLastMFA, now); err != nil {
		slogx.FromContext(ctx).Warn("failed to record mfa verification", slog.String("principal_id", p.ID), slog.Any("error", err))
	}

	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = jwtx.AccessTokenTTL
	}
	claims := jwtx.NewAccessClaims(p.ID, p.Roles.Primary().String(), true)
	claims.AMR = []string{jwtx.MethodOTP}
	access, err := s.Codec.Encode(claims, ttl)
	if err != nil {
		s.Metrics.MFAVerify(metrics.OutcomeError)
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	s.Metrics.MFAVerify(metrics.OutcomeSuccess)
	return domain.TokenPair{
		AccessToken: access,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   ttl,
	}, nil
}
