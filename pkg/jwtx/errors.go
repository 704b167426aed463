package jwtx

import "errors"

// ErrInvalidToken is the only decode failure callers ever see. Every cause
// below is reported through it with the same message.
var ErrInvalidToken = errors.New("jwtx: invalid token")

// Decode failure causes. They stay reachable through errors.Is for metrics
// and debug logging but never change the error text.
var (
	ErrMalformed         = errors.New("jwtx: malformed token")
	ErrExpired           = errors.New("jwtx: token expired")
	ErrSignatureMismatch = errors.New("jwtx: signature mismatch")
)

// Construction and encoding errors.
var (
	ErrWeakSecret = errors.New("jwtx: signing secret must be at least 32 bytes")
	ErrInvalidTTL = errors.New("jwtx: ttl must be at least one second")
)

// invalidTokenError collapses a decode failure into ErrInvalidToken.
type invalidTokenError struct {
	cause error
}

func (e *invalidTokenError) Error() string { return ErrInvalidToken.Error() }

func (e *invalidTokenError) Is(target error) bool { return target == ErrInvalidToken }

func (e *invalidTokenError) Unwrap() error { return e.cause }

func invalid(cause error) error {
	return &invalidTokenError{cause: cause}
}
