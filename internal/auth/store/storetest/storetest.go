// Package storetest is a conformance suite every store driver runs against
// a live database.
package storetest

import (
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/aussiebroadwan/farmportal/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Opener returns a freshly migrated, empty store.
type Opener func(t *testing.T) store.Store

// Epoch is the fixed base time the suite stamps records with.
var Epoch = time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

// NewPrincipal builds a valid principal for identifier.
func NewPrincipal(identifier string, roles ...domain.Role) domain.Principal {
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleFarmer}
	}
	return domain.Principal{
		ID:           idx.New().String(),
		Identifier:   domain.NormalizeIdentifier(identifier),
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0ZGlnZXN0ZGlnZXN0ZGlnZXN0ZGlnZXN0MTI",
		Roles:        roles,
		Profile: domain.Profile{
			FullName: "Kiran",
			Phone:    "+91 98450 00000",
			Language: "hi",
			Address:  "Plot 7, Mandya",
		},
		Verified: true,
		Audit: domain.Audit{
			CreatedAt: Epoch,
			CreatedBy: "storetest",
			UpdatedAt: Epoch,
			UpdatedBy: "storetest",
		},
	}
}

// Run executes the suite. Each subtest opens its own store.
func Run(t *testing.T, open Opener) {
	t.Run("Principals", func(t *testing.T) { testPrincipals(t, open) })
	t.Run("Revocations", func(t *testing.T) { testRevocations(t, open) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, open) })
}

func testPrincipals(t *testing.T, open Opener) {
	t.Run("create and find", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		p := NewPrincipal("farmer@example.com", domain.RoleOfficer, domain.RoleFarmer)
		require.NoError(t, s.Principals().Create(ctx, p))

		got, err := s.Principals().FindByIdentifier(ctx, "farmer@example.com")
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
		require.Equal(t, p.Identifier, got.Identifier)
		require.Equal(t, p.PasswordHash, got.PasswordHash)
		require.Equal(t, p.Roles, got.Roles)
		require.Equal(t, p.Profile, got.Profile)
		require.True(t, got.Verified)
		require.False(t, got.Disabled)
		require.Nil(t, got.MFASecret)
		require.WithinDuration(t, Epoch, got.Audit.CreatedAt, time.Second)
		require.Equal(t, "storetest", got.Audit.CreatedBy)
		require.Nil(t, got.Audit.LastLoginAt)
		require.Nil(t, got.Audit.LastMFAAt)

		byID, err := s.Principals().GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, got.Identifier, byID.Identifier)
	})

	t.Run("identifier lookup ignores case", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		require.NoError(t, s.Principals().Create(ctx, NewPrincipal("farmer@example.com")))

		_, err := s.Principals().FindByIdentifier(ctx, "Farmer@Example.com")
		require.NoError(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		_, err := s.Principals().FindByIdentifier(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Principals().GetByID(ctx, idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)

		err = s.Principals().UpdateAuditField(ctx, idx.New().String(), domain.AuditLastLogin, Epoch)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		require.NoError(t, s.Principals().Create(ctx, NewPrincipal("farmer@example.com")))
		err := s.Principals().Create(ctx, NewPrincipal("FARMER@example.com"))
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("audit fields", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		p := NewPrincipal("farmer@example.com")
		require.NoError(t, s.Principals().Create(ctx, p))

		login := Epoch.Add(time.Hour)
		mfa := Epoch.Add(2 * time.Hour)
		require.NoError(t, s.Principals().UpdateAuditField(ctx, p.ID, domain.AuditLastLogin, login))
		require.NoError(t, s.Principals().UpdateAuditField(ctx, p.ID, domain.AuditLastMFA, mfa))

		err := s.Principals().UpdateAuditField(ctx, p.ID, domain.AuditField("password_hash"), mfa)
		require.ErrorIs(t, err, store.ErrInvalidAuditField)

		got, err := s.Principals().GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Audit.LastLoginAt)
		require.NotNil(t, got.Audit.LastMFAAt)
		require.WithinDuration(t, login, *got.Audit.LastLoginAt, time.Second)
		require.WithinDuration(t, mfa, *got.Audit.LastMFAAt, time.Second)

		// Last writer wins, even with an older timestamp.
		require.NoError(t, s.Principals().UpdateAuditField(ctx, p.ID, domain.AuditLastLogin, Epoch))
		got, err = s.Principals().GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.WithinDuration(t, Epoch, *got.Audit.LastLoginAt, time.Second)
	})

	t.Run("password, mfa and disabled", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		repo := s.Principals()

		p := NewPrincipal("officer@example.com", domain.RoleOfficer)
		require.NoError(t, repo.Create(ctx, p))

		at := Epoch.Add(time.Minute)
		require.NoError(t, repo.UpdatePasswordHash(ctx, p.ID, "$2a$10$legacy", at))

		sealed := "v1.sealed-secret"
		require.NoError(t, repo.UpdateMFASecret(ctx, p.ID, &sealed, at))
		require.NoError(t, repo.SetDisabled(ctx, p.ID, true, "admin-1", at))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, "$2a$10$legacy", got.PasswordHash)
		require.True(t, got.MFAEnrolled())
		require.Equal(t, sealed, *got.MFASecret)
		require.True(t, got.Disabled)
		require.Equal(t, "admin-1", got.Audit.UpdatedBy)
		require.WithinDuration(t, at, got.Audit.UpdatedAt, time.Second)

		require.NoError(t, repo.UpdateMFASecret(ctx, p.ID, nil, at))
		require.NoError(t, repo.SetDisabled(ctx, p.ID, false, "admin-1", at))
		got, err = repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.False(t, got.MFAEnrolled())
		require.False(t, got.Disabled)

		require.ErrorIs(t, repo.SetDisabled(ctx, idx.New().String(), true, "x", at), store.ErrNotFound)
		require.ErrorIs(t, repo.UpdatePasswordHash(ctx, idx.New().String(), "h", at), store.ErrNotFound)
		require.ErrorIs(t, repo.UpdateMFASecret(ctx, idx.New().String(), nil, at), store.ErrNotFound)
	})

	t.Run("count", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		n, err := s.Principals().Count(ctx)
		require.NoError(t, err)
		require.Zero(t, n)

		require.NoError(t, s.Principals().Create(ctx, NewPrincipal("a@example.com")))
		require.NoError(t, s.Principals().Create(ctx, NewPrincipal("b@example.com")))

		n, err = s.Principals().Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})
}

func testRevocations(t *testing.T, open Opener) {
	t.Run("revoke and check", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		r := s.Revocations()

		revoked, err := r.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		require.False(t, revoked)

		require.NoError(t, r.Revoke(ctx, "jti-1", Epoch.Add(time.Hour)))
		require.NoError(t, r.Revoke(ctx, "jti-1", Epoch.Add(time.Hour)), "revoke is idempotent")

		revoked, err = r.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		require.True(t, revoked)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		r := s.Revocations()

		require.NoError(t, r.Revoke(ctx, "old", Epoch.Add(-time.Minute)))
		require.NoError(t, r.Revoke(ctx, "edge", Epoch))
		require.NoError(t, r.Revoke(ctx, "live", Epoch.Add(time.Hour)))

		n, err := r.DeleteExpired(ctx, Epoch)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		for jti, want := range map[string]bool{"old": false, "edge": false, "live": true} {
			revoked, err := r.IsRevoked(ctx, jti)
			require.NoError(t, err)
			require.Equal(t, want, revoked, "jti %s", jti)
		}
	})
}

func testTransactions(t *testing.T, open Opener) {
	errBoom := errors.New("boom")

	t.Run("rollback on error", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		err := s.WithTx(ctx, func(tx store.Tx) error {
			require.NoError(t, tx.Principals().Create(ctx, NewPrincipal("a@example.com")))
			return errBoom
		})
		require.ErrorIs(t, err, errBoom)

		n, err := s.Principals().Count(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("commit on success", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Principals().Create(ctx, NewPrincipal("a@example.com")); err != nil {
				return err
			}
			return tx.Revocations().Revoke(ctx, "jti", Epoch.Add(time.Hour))
		})
		require.NoError(t, err)

		n, err := s.Principals().Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("nested transactions refused", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		err := s.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.Tx(ctx)
			return err
		})
		require.Error(t, err)
	})
}
