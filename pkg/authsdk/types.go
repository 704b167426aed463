package authsdk

import "time"

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=1024"`
}

// RefreshRequest is the body of POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest is the optional body of POST /v1/auth/logout. When
// RefreshToken is set it is revoked along with the bearer token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenResponse is returned by login, refresh and TOTP verification. Only
// login carries a refresh token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// ChallengeResponse acknowledges POST /v1/auth/mfa/challenge.
type ChallengeResponse struct {
	Message        string `json:"message"`
	MFARequiredFor string `json:"mfa_required_for"`
}

// TOTPEnrollResponse carries the new TOTP secret. It is shown once.
type TOTPEnrollResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	Issuer     string `json:"issuer"`
	Account    string `json:"account"`
}

// TOTPVerifyRequest is the body of POST /v1/auth/mfa/totp/verify.
type TOTPVerifyRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

type ProfileResponse struct {
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Language string `json:"language,omitempty"`
	Address  string `json:"address,omitempty"`
}

type AuditResponse struct {
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastMFAAt   *time.Time `json:"last_mfa_at,omitempty"`
}

// PrincipalResponse is the view returned by GET /v1/users/me. It never
// includes the password hash or the TOTP secret.
type PrincipalResponse struct {
	ID          string          `json:"id"`
	Identifier  string          `json:"identifier"`
	Roles       []string        `json:"roles"`
	Profile     ProfileResponse `json:"profile"`
	Verified    bool            `json:"verified"`
	MFAEnrolled bool            `json:"mfa_enrolled"`
	Audit       AuditResponse   `json:"audit"`
}

// AdminOverviewResponse is returned by GET /v1/admin/overview.
type AdminOverviewResponse struct {
	Identifier string   `json:"identifier"`
	Roles      []string `json:"roles"`
	Verified   bool     `json:"verified"`
}

type HealthChecks struct {
	Database    string `json:"database"`
	Revocations string `json:"revocations"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
