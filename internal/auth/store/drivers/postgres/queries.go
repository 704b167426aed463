package postgres

import (
	"context"
	"database/sql"
	"time"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func newQueries(db dbtx) *queries { return &queries{db: db} }

type principalRow struct {
	ID           string
	Identifier   string
	PasswordHash string
	Roles        string
	FullName     string
	Phone        string
	Language     string
	Address      string
	Verified     bool
	Disabled     bool
	MFASecret    sql.NullString
	CreatedAt    time.Time
	CreatedBy    string
	UpdatedAt    time.Time
	UpdatedBy    string
	LastLoginAt  sql.NullTime
	LastMFAAt    sql.NullTime
}

const principalColumns = `id, identifier, password_hash, roles, full_name, phone, language, address,
	verified, disabled, mfa_secret, created_at, created_by, updated_at, updated_by,
	last_login_at, last_mfa_at`

func scanPrincipal(row *sql.Row) (principalRow, error) {
	var p principalRow
	err := row.Scan(
		&p.ID, &p.Identifier, &p.PasswordHash, &p.Roles,
		&p.FullName, &p.Phone, &p.Language, &p.Address,
		&p.Verified, &p.Disabled, &p.MFASecret,
		&p.CreatedAt, &p.CreatedBy, &p.UpdatedAt, &p.UpdatedBy,
		&p.LastLoginAt, &p.LastMFAAt,
	)
	return p, err
}

const getPrincipalByIdentifier = `select ` + principalColumns + `
from principals
where lower(identifier) = lower($1)`

func (q *queries) GetPrincipalByIdentifier(ctx context.Context, identifier string) (principalRow, error) {
	return scanPrincipal(q.db.QueryRowContext(ctx, getPrincipalByIdentifier, identifier))
}

const getPrincipalByID = `select ` + principalColumns + `
from principals
where id = $1`

func (q *queries) GetPrincipalByID(ctx context.Context, id string) (principalRow, error) {
	return scanPrincipal(q.db.QueryRowContext(ctx, getPrincipalByID, id))
}

const createPrincipal = `insert into principals (` + principalColumns + `)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

func (q *queries) CreatePrincipal(ctx context.Context, p principalRow) error {
	_, err := q.db.ExecContext(ctx, createPrincipal,
		p.ID, p.Identifier, p.PasswordHash, p.Roles,
		p.FullName, p.Phone, p.Language, p.Address,
		p.Verified, p.Disabled, p.MFASecret,
		p.CreatedAt, p.CreatedBy, p.UpdatedAt, p.UpdatedBy,
		p.LastLoginAt, p.LastMFAAt,
	)
	return err
}

const (
	touchLastLogin = `update principals set last_login_at = $1 where id = $2`
	touchLastMFA   = `update principals set last_mfa_at = $1 where id = $2`
)

func (q *queries) TouchLastLogin(ctx context.Context, id string, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, touchLastLogin, at, id))
}

func (q *queries) TouchLastMFA(ctx context.Context, id string, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, touchLastMFA, at, id))
}

const updatePasswordHash = `update principals set password_hash = $1, updated_at = $2 where id = $3`

func (q *queries) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, updatePasswordHash, hash, at, id))
}

const updateMFASecret = `update principals set mfa_secret = $1, updated_at = $2 where id = $3`

func (q *queries) UpdateMFASecret(ctx context.Context, id string, secret sql.NullString, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, updateMFASecret, secret, at, id))
}

const setDisabled = `update principals set disabled = $1, updated_at = $2, updated_by = $3 where id = $4`

func (q *queries) SetDisabled(ctx context.Context, id string, disabled bool, by string, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, setDisabled, disabled, at, by, id))
}

const countPrincipals = `select count(*) from principals`

func (q *queries) CountPrincipals(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countPrincipals).Scan(&n)
	return n, err
}

const revokeToken = `insert into revoked_tokens (jti, expires_at) values ($1, $2)
on conflict (jti) do update set expires_at = greatest(revoked_tokens.expires_at, excluded.expires_at)`

func (q *queries) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := q.db.ExecContext(ctx, revokeToken, jti, expiresAt)
	return err
}

const isTokenRevoked = `select exists (select 1 from revoked_tokens where jti = $1)`

func (q *queries) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := q.db.QueryRowContext(ctx, isTokenRevoked, jti).Scan(&revoked)
	return revoked, err
}

const deleteExpiredRevocations = `delete from revoked_tokens where expires_at <= $1`

func (q *queries) DeleteExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, deleteExpiredRevocations, now))
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
