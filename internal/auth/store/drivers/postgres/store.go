// Package postgres is the PostgreSQL store driver, built on pgx through
// database/sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgErrUniqueViolation = "23505"

var _ store.Store = (*Store)(nil)

type Store struct {
	db  *sql.DB
	q   *queries
	dsn string
}

// NewStore connects to dsn and verifies the connection.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := New(db)
	s.dsn = dsn
	return s, nil
}

// New wraps an existing pool. ApplyMigrations needs a dsn and is not
// available on stores built this way.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: newQueries(db)}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
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

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func mapConstraint(err error) error {
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return store.ErrAlreadyExists
	}
	return err
}

func requireRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func optionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func optionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func rowToPrincipal(row principalRow) (domain.Principal, error) {
	roles, err := store.DecodeRoles(row.Roles)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("postgres: principal %s: %w", row.ID, err)
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
		MFASecret: nullStringPtr(row.MFASecret),
		Audit: domain.Audit{
			CreatedAt:   row.CreatedAt.UTC(),
			CreatedBy:   row.CreatedBy,
			UpdatedAt:   row.UpdatedAt.UTC(),
			UpdatedBy:   row.UpdatedBy,
			LastLoginAt: nullTimePtr(row.LastLoginAt),
			LastMFAAt:   nullTimePtr(row.LastMFAAt),
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
		MFASecret:    optionalString(p.MFASecret),
		CreatedAt:    p.Audit.CreatedAt.UTC(),
		CreatedBy:    p.Audit.CreatedBy,
		UpdatedAt:    p.Audit.UpdatedAt.UTC(),
		UpdatedBy:    p.Audit.UpdatedBy,
		LastLoginAt:  optionalTime(p.Audit.LastLoginAt),
		LastMFAAt:    optionalTime(p.Audit.LastMFAAt),
	}
}
