package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token lifetimes used by the issuing helpers.
const (
	// AccessTokenTTL is short so role and MFA snapshots go stale quickly.
	AccessTokenTTL = 30 * time.Minute

	// RefreshTokenTTL bounds how long a login can be silently extended.
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// MethodOTP is the "amr" value stamped on access tokens minted by a
// successful one-time code check (RFC 8176).
const MethodOTP = "otp"

// TokenType distinguishes bearer credentials from refresh credentials.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// Claims is the signed claim set. Subject, expiry, issued-at and token id
// come from the registered claims; role and mfa are only set on access
// tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Type is "access" or "refresh".
	Type TokenType `json:"type"`

	// Role is a snapshot of the principal's primary role at issuance.
	Role string `json:"role,omitempty"`

	// MFA records whether a second factor was verified for this session.
	// Pointer so access tokens carry an explicit false and refresh tokens
	// carry nothing.
	MFA *bool `json:"mfa,omitempty"`

	// AMR lists the authentication methods behind an access token. Only
	// tokens from a TOTP check carry MethodOTP; refreshed tokens do not.
	AMR []string `json:"amr,omitempty"`
}

// NewAccessClaims builds the claim set for an access token.
func NewAccessClaims(subject, role string, mfaVerified bool) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Type:             TokenTypeAccess,
		Role:             role,
		MFA:              &mfaVerified,
	}
}

// NewRefreshClaims builds the claim set for a refresh token.
func NewRefreshClaims(subject string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Type:             TokenTypeRefresh,
	}
}

// MFAVerified reports the mfa claim, treating an absent claim as false.
func (c Claims) MFAVerified() bool {
	return c.MFA != nil && *c.MFA
}

// TOTPVerified reports whether the token was minted by a TOTP check, as
// opposed to a refresh that only carries mfa=true.
func (c Claims) TOTPVerified() bool {
	return c.MFAVerified() && slices.Contains(c.AMR, MethodOTP)
}

// ExpiresAtTime returns the exp claim, or the zero time if it is absent.
func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ValidateExpiry fails once now reaches exp. The boundary itself is expired.
func (c Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrMalformed
	}
	if !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}

// ValidateShape checks the claims every token must carry regardless of type.
func (c Claims) ValidateShape() error {
	if c.Subject == "" || !c.Type.Valid() || c.ExpiresAt == nil {
		return ErrMalformed
	}
	if c.Type == TokenTypeRefresh && (c.Role != "" || c.MFA != nil || len(c.AMR) > 0) {
		return ErrMalformed
	}
	return nil
}

// NewJTI returns a random identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}
