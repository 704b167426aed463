package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/farmportal/pkg/httpx"
)

// Error codes returned in the "error" field of every failure body.
const (
	ErrorCodeInvalidRequest             = "invalid_request"
	ErrorCodeInvalidCredentials         = "invalid_credentials"
	ErrorCodeInvalidToken               = "invalid_token"
	ErrorCodeTokenTypeMismatch          = "token_type_mismatch"
	ErrorCodeForbidden                  = "forbidden"
	ErrorCodeMFARequired                = "mfa_required"
	ErrorCodePrincipalDisabledOrMissing = "principal_disabled_or_missing"
	ErrorCodeInvalidCode                = "invalid_code"
	ErrorCodeMFANotEnrolled             = "mfa_not_enrolled"
	ErrorCodeMFAAlreadyEnrolled         = "mfa_already_enrolled"
	ErrorCodeRateLimited                = "rate_limited"
	ErrorCodeServerError                = "server_error"
)

// APIError is the JSON error body of the service. The server writes it with
// WriteError and the SDK returns it from every failed call.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on status and code so a decoded error equals its predefined
// counterpart.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WriteError writes e as the response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required fields",
	}

	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// password.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid, expired or revoked",
	}

	ErrTokenTypeMismatch = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTokenTypeMismatch,
		Description: "the token type is not accepted here",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeForbidden,
		Description: "the token role is not allowed",
	}

	ErrMFARequired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeMFARequired,
		Description: "a verified second factor is required",
	}

	ErrPrincipalDisabledOrMissing = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodePrincipalDisabledOrMissing,
		Description: "the principal is disabled or no longer exists",
	}

	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidCode,
		Description: "invalid TOTP code",
	}

	ErrMFANotEnrolled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeMFANotEnrolled,
		Description: "no TOTP secret is enrolled",
	}

	ErrMFAAlreadyEnrolled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeMFAAlreadyEnrolled,
		Description: "a TOTP secret is already enrolled; step up first to replace it",
	}

	ErrRateLimited = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeRateLimited,
		Description: "too many requests, retry later",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies that
// are not the service's error shape keep the status with a generic code.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("unexpected status %d", resp.StatusCode),
	}
}
