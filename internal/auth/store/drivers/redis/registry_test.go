package redis_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	revredis "github.com/aussiebroadwan/farmportal/internal/auth/store/drivers/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T) (*revredis.Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	reg := revredis.NewRegistry(client, revredis.WithClock(func() time.Time { return now }))
	t.Cleanup(func() { _ = reg.Close() })
	return reg, mr
}

func TestRevokeAndCheck(t *testing.T) {
	reg, mr := newRegistry(t)
	ctx := t.Context()

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, reg.Revoke(ctx, "jti-1", now.Add(30*time.Minute)))

	revoked, err = reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	require.True(t, mr.Exists(revredis.DefaultPrefix+":jti-1"))
	require.Equal(t, 30*time.Minute, mr.TTL(revredis.DefaultPrefix+":jti-1"))
}

func TestEntriesExpireWithToken(t *testing.T) {
	reg, mr := newRegistry(t)
	ctx := t.Context()

	require.NoError(t, reg.Revoke(ctx, "jti-1", now.Add(time.Minute)))
	mr.FastForward(time.Minute)

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	reg, mr := newRegistry(t)

	require.NoError(t, reg.Revoke(t.Context(), "old", now.Add(-time.Second)))
	require.NoError(t, reg.Revoke(t.Context(), "edge", now))
	require.Empty(t, mr.Keys())
}

func TestSubSecondTTLRoundsUp(t *testing.T) {
	reg, mr := newRegistry(t)

	require.NoError(t, reg.Revoke(t.Context(), "jti", now.Add(200*time.Millisecond)))
	require.Equal(t, time.Second, mr.TTL(revredis.DefaultPrefix+":jti"))
}

func TestPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := revredis.NewRegistry(client,
		revredis.WithPrefix("tenant-a"),
		revredis.WithClock(func() time.Time { return now }),
	)

	require.NoError(t, reg.Revoke(t.Context(), "jti", now.Add(time.Hour)))
	require.Equal(t, []string{"tenant-a:jti"}, mr.Keys())
}

func TestDeleteExpiredIsNoop(t *testing.T) {
	reg, _ := newRegistry(t)
	n, err := reg.DeleteExpired(t.Context(), now)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestUnavailable(t *testing.T) {
	reg, mr := newRegistry(t)
	mr.Close()

	_, err := reg.IsRevoked(t.Context(), "jti")
	require.Error(t, err)
	require.Error(t, reg.Ping(t.Context()))
}
