// Package policy decides whether a decoded token satisfies a route's access
// policy. Every function is pure and inspects claims only.
package policy

import (
	"errors"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
)

var (
	ErrTokenTypeMismatch = errors.New("policy: token type mismatch")
	ErrForbidden         = errors.New("policy: forbidden")
	ErrMFAMissing        = errors.New("policy: mfa required")
)

// RequireTokenType fails unless claims carry the expected type.
func RequireTokenType(claims jwtx.Claims, expected jwtx.TokenType) error {
	if claims.Type != expected {
		return ErrTokenTypeMismatch
	}
	return nil
}

// RequireRole fails unless the token role is in allowed. An empty allowed
// list admits any role.
func RequireRole(claims jwtx.Claims, allowed []domain.Role) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, r := range allowed {
		if claims.Role == string(r) {
			return nil
		}
	}
	return ErrForbidden
}

// RequireMFA fails when required is set and the token lacks mfa=true.
func RequireMFA(claims jwtx.Claims, required bool) error {
	if required && !claims.MFAVerified() {
		return ErrMFAMissing
	}
	return nil
}

// Authorize applies the checks for an access-guarded operation in a fixed
// order: token type, then role, then MFA.
func Authorize(claims jwtx.Claims, p domain.AccessPolicy) error {
	if err := RequireTokenType(claims, jwtx.TokenTypeAccess); err != nil {
		return err
	}
	if err := RequireRole(claims, p.Roles); err != nil {
		return err
	}
	return RequireMFA(claims, p.MFARequired)
}
