package service

import (
	"errors"

	"github.com/aussiebroadwan/farmportal/internal/auth/policy"
	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
)

// The failure taxonomy seen by the request layer. Token and policy failures
// are the same values their packages return so errors.Is works on either.
var (
	ErrInvalidCredentials         = errors.New("invalid_credentials")
	ErrPrincipalDisabledOrMissing = errors.New("principal_disabled_or_missing")

	ErrInvalidToken      = jwtx.ErrInvalidToken
	ErrTokenTypeMismatch = policy.ErrTokenTypeMismatch
	ErrForbidden         = policy.ErrForbidden
	ErrMFAMissing        = policy.ErrMFAMissing
)

// MFA step-up failures.
var (
	ErrInvalidTOTPCode    = errors.New("invalid_totp_code")
	ErrMFANotEnrolled     = errors.New("mfa_not_enrolled")
	ErrMFAAlreadyEnrolled = errors.New("mfa_already_enrolled")
)

// Directory failures.
var (
	ErrIdentifierTaken  = errors.New("identifier_taken")
	ErrInvalidPrincipal = errors.New("invalid_principal")
)
