// Package redis keeps the token revocation registry in Redis. Entries carry
// the token's remaining lifetime as their TTL so Redis expires them itself.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces revocation keys.
const DefaultPrefix = "farmportal:revoked"

var _ store.Revocations = (*Registry)(nil)

// Registry implements store.Revocations.
type Registry struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// WithClock overrides the time source used to compute TTLs.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(client redis.UniversalClient, opts ...Option) *Registry {
	r := &Registry{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) key(jti string) string {
	return r.prefix + ":" + jti
}

// Revoke stores jti until expiresAt. Tokens already past expiry are skipped
// since Decode rejects them anyway.
func (r *Registry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	// Redis rounds sub-second TTLs down to zero.
	ttl = max(ttl, time.Second)

	if err := r.client.Set(ctx, r.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis: revoke: %w", err)
	}
	return nil
}

func (r *Registry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: is revoked: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired is a no-op; key TTLs do the work.
func (r *Registry) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping checks the connection, for readiness probes.
func (r *Registry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Registry) Close() error {
	return r.client.Close()
}
