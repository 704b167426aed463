package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrAlreadyExists     = errors.New("store: already exists")
	ErrInvalidAuditField = errors.New("store: invalid audit field")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement it and expose sub-repositories so a transaction can
// never be opened inside another one.
type Store interface {
	Principals() Principals
	Revocations() Revocations

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Principals is the user directory.
type Principals interface {
	// FindByIdentifier looks up a principal by normalised identifier.
	FindByIdentifier(ctx context.Context, identifier string) (domain.Principal, error)

	GetByID(ctx context.Context, id string) (domain.Principal, error)

	// Create inserts p. A taken identifier or id returns ErrAlreadyExists.
	Create(ctx context.Context, p domain.Principal) error

	// UpdateAuditField writes a single audit timestamp, last writer wins.
	UpdateAuditField(ctx context.Context, id string, field domain.AuditField, at time.Time) error

	// UpdatePasswordHash replaces the stored hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error

	// UpdateMFASecret stores a sealed TOTP secret. nil clears it.
	UpdateMFASecret(ctx context.Context, id string, sealed *string, at time.Time) error

	// SetDisabled flips the disabled flag and records who did it.
	SetDisabled(ctx context.Context, id string, disabled bool, by string, at time.Time) error

	Count(ctx context.Context) (int, error)
}

// Revocations is the token revocation registry, keyed by jti. Entries are
// only meaningful until the token's own expiry.
type Revocations interface {
	// Revoke records jti as revoked until expiresAt. Revoking twice is not
	// an error.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired removes entries whose token has expired by now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NopRevocations is used when revocation is switched off. Nothing is ever
// revoked.
type NopRevocations struct{}

func (NopRevocations) Revoke(context.Context, string, time.Time) error { return nil }

func (NopRevocations) IsRevoked(context.Context, string) (bool, error) { return false, nil }

func (NopRevocations) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }
