package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db  *sql.DB
	q   *queries
	dsn string
}

// NewStore opens the database at dsn. SQLite serialises writers anyway, so
// the pool is pinned to one connection; that also keeps ":memory:"
// databases and per-connection pragmas consistent.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	} {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	return &Store{
		db:  db,
		q:   newQueries(db),
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Principals() store.Principals   { return &principalsRepo{q: s.q} }
func (s *Store) Revocations() store.Revocations { return &revocationsRepo{q: s.q} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConstraint(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrAlreadyExists
		}
	}
	return err
}

// requireRow turns an UPDATE that matched nothing into ErrNotFound.
func requireRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time.UTC()
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapPrincipal(row principalRow) (domain.Principal, error) {
	roles, err := store.DecodeRoles(row.Roles)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("sqlite: principal %s: %w", row.ID, err)
	}

	return domain.Principal{
		ID:           row.ID,
		Identifier:   row.Identifier,
		PasswordHash: row.PasswordHash,
		Roles:        roles,
		Profile: domain.Profile{
			FullName: row.FullName,
			Phone:    row.Phone,
			Language: row.Language,
			Address:  row.Address,
		},
		Verified:  row.Verified,
		Disabled:  row.Disabled,
		MFASecret: mapNullStringPtr(row.MFASecret),
		Audit: domain.Audit{
			CreatedAt:   row.CreatedAt.UTC(),
			CreatedBy:   row.CreatedBy,
			UpdatedAt:   row.UpdatedAt.UTC(),
			UpdatedBy:   row.UpdatedBy,
			LastLoginAt: mapNullTimePtr(row.LastLoginAt),
			LastMFAAt:   mapNullTimePtr(row.LastMFAAt),
		},
	}, nil
}

func principalToRow(p domain.Principal) principalRow {
	return principalRow{
		ID:           p.ID,
		Identifier:   domain.NormalizeIdentifier(p.Identifier),
		PasswordHash: p.PasswordHash,
		Roles:        store.EncodeRoles(p.Roles),
		FullName:     p.Profile.FullName,
		Phone:        p.Profile.Phone,
		Language:     p.Profile.Language,
		Address:      p.Profile.Address,
		Verified:     p.Verified,
		Disabled:     p.Disabled,
		MFASecret:    mapOptionalString(p.MFASecret),
		CreatedAt:    p.Audit.CreatedAt.UTC(),
		CreatedBy:    p.Audit.CreatedBy,
		UpdatedAt:    p.Audit.UpdatedAt.UTC(),
		UpdatedBy:    p.Audit.UpdatedBy,
		LastLoginAt:  mapOptionalTime(p.Audit.LastLoginAt),
		LastMFAAt:    mapOptionalTime(p.Audit.LastMFAAt),
	}
}
