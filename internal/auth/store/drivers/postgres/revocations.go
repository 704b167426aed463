package postgres

import (
	"context"
	"time"
)

type revocationsRepo struct {
	q *queries
}

func (r *revocationsRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	return r.q.RevokeToken(ctx, jti, expiresAt.UTC())
}

func (r *revocationsRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.q.IsTokenRevoked(ctx, jti)
}

func (r *revocationsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredRevocations(ctx, now.UTC())
}
