package jwtx_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a settable clock shared between the codec and the test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = t
}

func newCodec(t *testing.T, clock *fakeClock, opts ...jwtx.Option) *jwtx.Codec {
	t.Helper()
	opts = append(opts, jwtx.WithClock(clock.Now))
	c, err := jwtx.NewCodec(testSecret, opts...)
	require.NoError(t, err)
	return c
}

func TestNewCodec(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := jwtx.NewCodec([]byte("too-short"))
		require.ErrorIs(t, err, jwtx.ErrWeakSecret)
	})

	t.Run("copies the secret", func(t *testing.T) {
		secret := append([]byte(nil), testSecret...)
		c, err := jwtx.NewCodec(secret)
		require.NoError(t, err)

		token, err := c.IssueRefreshToken("p1")
		require.NoError(t, err)

		secret[0] ^= 0xFF
		_, err = c.Decode(token)
		require.NoError(t, err, "mutating the caller's slice must not affect the codec")
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	clock := newFakeClock()
	c := newCodec(t, clock)

	in := jwtx.NewAccessClaims("01J0PRINCIPAL", "farmer", true)
	token, err := c.Encode(in, 10*time.Minute)
	require.NoError(t, err)

	out, err := c.Decode(token)
	require.NoError(t, err)

	require.Equal(t, "01J0PRINCIPAL", out.Subject)
	require.Equal(t, jwtx.TokenTypeAccess, out.Type)
	require.Equal(t, "farmer", out.Role)
	require.True(t, out.MFAVerified())
	require.NotEmpty(t, out.ID)
	require.WithinDuration(t, clock.Now().Add(10*time.Minute), out.ExpiresAtTime(), 0)
	require.WithinDuration(t, clock.Now(), out.IssuedAt.Time, 0)
}

func TestDecodeExpiryBoundary(t *testing.T) {
	clock := newFakeClock()
	c := newCodec(t, clock)
	issuedAt := clock.Now()

	token, err := c.Encode(jwtx.NewRefreshClaims("p1"), time.Hour)
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		clock.Set(issuedAt.Add(time.Hour - time.Second))
		_, err := c.Decode(token)
		require.NoError(t, err)
	})

	t.Run("invalid exactly at expiry", func(t *testing.T) {
		clock.Set(issuedAt.Add(time.Hour))
		_, err := c.Decode(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("invalid after expiry", func(t *testing.T) {
		clock.Set(issuedAt.Add(2 * time.Hour))
		_, err := c.Decode(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})
}

func TestEncodeFractionalClock(t *testing.T) {
	clock := newFakeClock()
	issued := clock.Now().Add(700 * time.Millisecond)
	clock.Set(issued)
	c := newCodec(t, clock)

	token, err := c.Encode(jwtx.NewRefreshClaims("p1"), 10*time.Minute)
	require.NoError(t, err)

	claims, err := c.Decode(token)
	require.NoError(t, err)
	require.Equal(t, issued.Truncate(time.Second), claims.IssuedAt.Time)
	require.Equal(t, 10*time.Minute, claims.ExpiresAtTime().Sub(claims.IssuedAt.Time))

	t.Run("valid until iat plus ttl", func(t *testing.T) {
		clock.Set(claims.IssuedAt.Add(10*time.Minute - time.Millisecond))
		_, err := c.Decode(token)
		require.NoError(t, err)
	})

	t.Run("expired at iat plus ttl", func(t *testing.T) {
		clock.Set(claims.IssuedAt.Add(10 * time.Minute))
		_, err := c.Decode(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestEncodeRejectsNonPositiveTTL(t *testing.T) {
	c := newCodec(t, newFakeClock())

	for _, ttl := range []time.Duration{0, -time.Minute, 500 * time.Millisecond, time.Second - time.Nanosecond} {
		_, err := c.Encode(jwtx.NewRefreshClaims("p1"), ttl)
		require.ErrorIs(t, err, jwtx.ErrInvalidTTL, "ttl %s", ttl)
	}
}

func TestEncodeRejectsBadShape(t *testing.T) {
	c := newCodec(t, newFakeClock())

	_, err := c.Encode(jwtx.NewRefreshClaims(""), time.Minute)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestDecodeTamperedToken(t *testing.T) {
	c := newCodec(t, newFakeClock())

	token, err := c.IssueAccessToken("p1", "farmer", false)
	require.NoError(t, err)

	// Changing any single byte must never yield a different claim set.
	for i := range len(token) {
		b := []byte(token)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}

		claims, err := c.Decode(string(b))
		require.ErrorIs(t, err, jwtx.ErrInvalidToken, "byte %d", i)
		require.Empty(t, claims.Subject)
	}
}

func TestDecodeCollapsesFailures(t *testing.T) {
	clock := newFakeClock()
	c := newCodec(t, clock)

	other, err := jwtx.NewCodec([]byte("ffffffffffffffffffffffffffffffff"), jwtx.WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.IssueAccessToken("p1", "admin", true)
	require.NoError(t, err)

	expired, err := c.Encode(jwtx.NewRefreshClaims("p1"), time.Second)
	require.NoError(t, err)

	strong := jwtx.NewAccessClaims("p1", "admin", true)
	strong.ExpiresAt = jwt.NewNumericDate(clock.Now().Add(time.Hour))
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, strong).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
		cause error
	}{
		{"empty", func() string { return "" }, jwtx.ErrMalformed},
		{"garbage", func() string { return "not.a.jwt" }, jwtx.ErrMalformed},
		{"two segments", func() string { return "abc.def" }, jwtx.ErrMalformed},
		{"foreign secret", func() string { return foreign }, jwtx.ErrSignatureMismatch},
		{"wrong algorithm", func() string { return wrongAlg }, nil},
		{"alg none", func() string { return unsignedToken(t, clock.Now()) }, nil},
		{"expired", func() string {
			clock.Set(clock.Now().Add(time.Minute))
			return expired
		}, jwtx.ErrExpired},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.token())
			require.ErrorIs(t, err, jwtx.ErrInvalidToken)
			if tt.cause != nil {
				require.ErrorIs(t, err, tt.cause)
			}
			messages = append(messages, err.Error())
		})
	}

	for _, msg := range messages {
		require.Equal(t, jwtx.ErrInvalidToken.Error(), msg, "failure reasons must not leak through the message")
	}
}

func TestDecodeIssuer(t *testing.T) {
	clock := newFakeClock()
	withIssuer := newCodec(t, clock, jwtx.WithIssuer("farmportal-auth"))
	plain := newCodec(t, clock)

	token, err := withIssuer.IssueRefreshToken("p1")
	require.NoError(t, err)

	claims, err := withIssuer.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "farmportal-auth", claims.Issuer)

	untagged, err := plain.IssueRefreshToken("p1")
	require.NoError(t, err)
	_, err = withIssuer.Decode(untagged)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestIssueTokens(t *testing.T) {
	clock := newFakeClock()
	c := newCodec(t, clock)

	t.Run("access token", func(t *testing.T) {
		token, err := c.IssueAccessToken("p1", "officer", false)
		require.NoError(t, err)

		claims, err := c.Decode(token)
		require.NoError(t, err)
		require.Equal(t, jwtx.TokenTypeAccess, claims.Type)
		require.Equal(t, "officer", claims.Role)
		require.NotNil(t, claims.MFA)
		require.False(t, claims.MFAVerified())
		require.WithinDuration(t, clock.Now().Add(30*time.Minute), claims.ExpiresAtTime(), 0)

		payload := decodePayload(t, token)
		require.Contains(t, payload, "mfa")
		require.Equal(t, false, payload["mfa"])
	})

	t.Run("refresh token", func(t *testing.T) {
		token, err := c.IssueRefreshToken("p1")
		require.NoError(t, err)

		claims, err := c.Decode(token)
		require.NoError(t, err)
		require.Equal(t, jwtx.TokenTypeRefresh, claims.Type)
		require.WithinDuration(t, clock.Now().Add(30*24*time.Hour), claims.ExpiresAtTime(), 0)

		payload := decodePayload(t, token)
		require.NotContains(t, payload, "role")
		require.NotContains(t, payload, "mfa")
		require.Equal(t, "refresh", payload["type"])
		require.Equal(t, "p1", payload["sub"])
	})

	t.Run("distinct token ids", func(t *testing.T) {
		a, err := c.IssueRefreshToken("p1")
		require.NoError(t, err)
		b, err := c.IssueRefreshToken("p1")
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func decodePayload(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	return payload
}

func unsignedToken(t *testing.T, now time.Time) string {
	t.Helper()
	claims := jwtx.NewAccessClaims("p1", "admin", true)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Hour))

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}
