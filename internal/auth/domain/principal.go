package domain

import (
	"strings"
	"time"
)

// Principal is a directory entry that can authenticate.
type Principal struct {
	ID         string
	Identifier string // normalised with NormalizeIdentifier
	// PasswordHash is a PHC string (argon2id) or a legacy bcrypt hash.
	PasswordHash string
	Roles        Roles
	Profile      Profile
	Verified     bool
	Disabled     bool
	// MFASecret is the sealed TOTP secret, nil until enrolment.
	MFASecret *string
	Audit     Audit
}

// Active reports whether the principal may hold a session.
func (p Principal) Active() bool {
	return !p.Disabled
}

// MFAEnrolled reports whether a TOTP secret is stored.
func (p Principal) MFAEnrolled() bool {
	return p.MFASecret != nil && *p.MFASecret != ""
}

// Profile holds the display details farmers fill in at registration.
type Profile struct {
	FullName string
	Phone    string
	Language string
	Address  string
}

// Audit tracks who touched a principal and when. The last-* fields are
// written independently, last writer wins.
type Audit struct {
	CreatedAt   time.Time
	CreatedBy   string
	UpdatedAt   time.Time
	UpdatedBy   string
	LastLoginAt *time.Time
	LastMFAAt   *time.Time
}

// AuditField names a single-column timestamp the session layer may touch.
type AuditField string

const (
	AuditLastLogin AuditField = "last_login_at"
	AuditLastMFA   AuditField = "last_mfa_at"
)

// Valid reports whether f is a writable audit field.
func (f AuditField) Valid() bool {
	return f == AuditLastLogin || f == AuditLastMFA
}

// NormalizeIdentifier folds an identifier for lookup and storage.
func NormalizeIdentifier(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
