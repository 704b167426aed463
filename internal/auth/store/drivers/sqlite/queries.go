package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries binds the statements below to a connection or transaction.
type queries struct {
	db dbtx
}

func newQueries(db dbtx) *queries { return &queries{db: db} }

// principalRow mirrors the principals table.
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

const getPrincipalByIdentifier = `SELECT ` + principalColumns + ` FROM principals WHERE identifier = ?`

func (q *queries) GetPrincipalByIdentifier(ctx context.Context, identifier string) (principalRow, error) {
	return scanPrincipal(q.db.QueryRowContext(ctx, getPrincipalByIdentifier, identifier))
}

const getPrincipalByID = `SELECT ` + principalColumns + ` FROM principals WHERE id = ?`

func (q *queries) GetPrincipalByID(ctx context.Context, id string) (principalRow, error) {
	return scanPrincipal(q.db.QueryRowContext(ctx, getPrincipalByID, id))
}

const createPrincipal = `INSERT INTO principals (` + principalColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

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
	touchLastLogin = `UPDATE principals SET last_login_at = ? WHERE id = ?`
	touchLastMFA   = `UPDATE principals SET last_mfa_at = ? WHERE id = ?`
)

func (q *queries) TouchLastLogin(ctx context.Context, id string, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, touchLastLogin, at, id))
}

func (q *queries) TouchLastMFA(ctx context.Context, id string, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, touchLastMFA, at, id))
}

const updatePasswordHash = `UPDATE principals SET password_hash = ?, updated_at = ? WHERE id = ?`

func (q *queries) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, updatePasswordHash, hash, at, id))
}

const updateMFASecret = `UPDATE principals SET mfa_secret = ?, updated_at = ? WHERE id = ?`

func (q *queries) UpdateMFASecret(ctx context.Context, id string, secret sql.NullString, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, updateMFASecret, secret, at, id))
}

const setDisabled = `UPDATE principals SET disabled = ?, updated_at = ?, updated_by = ? WHERE id = ?`

func (q *queries) SetDisabled(ctx context.Context, id string, disabled bool, by string, at time.Time) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, setDisabled, disabled, at, by, id))
}

const countPrincipals = `SELECT COUNT(*) FROM principals`

func (q *queries) CountPrincipals(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countPrincipals).Scan(&n)
	return n, err
}

const revokeToken = `INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?)
ON CONFLICT (jti) DO UPDATE SET expires_at = MAX(expires_at, excluded.expires_at)`

func (q *queries) RevokeToken(ctx context.Context, jti string, expiresAt int64) error {
	_, err := q.db.ExecContext(ctx, revokeToken, jti, expiresAt)
	return err
}

const isTokenRevoked = `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`

func (q *queries) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := q.db.QueryRowContext(ctx, isTokenRevoked, jti).Scan(&revoked)
	return revoked, err
}

const deleteExpiredRevocations = `DELETE FROM revoked_tokens WHERE expires_at <= ?`

func (q *queries) DeleteExpiredRevocations(ctx context.Context, now int64) (int64, error) {
	return rowsAffected(q.db.ExecContext(ctx, deleteExpiredRevocations, now))
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
