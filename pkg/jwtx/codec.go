package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret NewCodec accepts.
const MinSecretLength = 32

// Codec signs and verifies HS256 tokens with a secret fixed at construction.
// It holds no other state and is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithIssuer stamps and requires the "iss" claim.
func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

// NewCodec returns a Codec for secret. The secret is copied so later changes
// to the caller's slice have no effect.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithStrictDecoding(),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now exposes the codec clock so callers stamp audit times consistently.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Encode sets iat to the current second, exp = iat + ttl and a fresh jti
// (unless one is already set), then signs the claims. Token times have
// second precision, so ttl must be at least a second.
func (c *Codec) Encode(claims Claims, ttl time.Duration) (string, error) {
	if ttl < time.Second {
		return "", ErrInvalidTTL
	}

	issuedAt := c.now().Truncate(time.Second)

	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	if claims.ID == "" {
		claims.ID = NewJTI()
	}
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}

	if err := claims.ValidateShape(); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies the signature, shape and expiry of raw. Any failure is
// reported as ErrInvalidToken.
func (c *Codec) Decode(raw string) (Claims, error) {
	var claims Claims

	_, err := c.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, invalid(ErrSignatureMismatch)
		}
		return Claims{}, invalid(ErrMalformed)
	}

	if err := claims.ValidateShape(); err != nil {
		return Claims{}, invalid(err)
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, invalid(ErrMalformed)
	}
	if err := claims.ValidateExpiry(c.now()); err != nil {
		return Claims{}, invalid(err)
	}

	return claims, nil
}

// IssueAccessToken mints an access token for subject carrying role and the
// MFA flag.
func (c *Codec) IssueAccessToken(subject, role string, mfaVerified bool) (string, error) {
	return c.Encode(NewAccessClaims(subject, role, mfaVerified), AccessTokenTTL)
}

// IssueRefreshToken mints a refresh token for subject. It carries no role or
// MFA claim.
func (c *Codec) IssueRefreshToken(subject string) (string, error) {
	return c.Encode(NewRefreshClaims(subject), RefreshTokenTTL)
}
