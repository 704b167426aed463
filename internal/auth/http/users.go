package http

import (
	"net/http"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/pkg/authsdk"
	"github.com/aussiebroadwan/farmportal/pkg/httpx"
)

// HandleMe handles GET /v1/users/me
//
//	@Summary		Current principal
//	@Description	Returns the authenticated principal without credentials.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.PrincipalResponse	"Principal"
//	@Failure		401	{object}	authsdk.APIError			"Invalid or missing access token"
//	@Router			/v1/users/me [get].
func HandleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeMissingBearer(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, principalResponse(sess.principal))
}

// HandleAdminOverview handles GET /v1/admin/overview
//
//	@Summary		Admin overview
//	@Description	Admin only, and the access token must be MFA-verified.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.AdminOverviewResponse	"Overview"
//	@Failure		401	{object}	authsdk.APIError				"Invalid token or mfa_required"
//	@Failure		403	{object}	authsdk.APIError				"Role not allowed"
//	@Router			/v1/admin/overview [get].
func HandleAdminOverview(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeMissingBearer(w)
		return
	}

	p := sess.principal
	httpx.WriteJSON(w, http.StatusOK, authsdk.AdminOverviewResponse{
		Identifier: p.Identifier,
		Roles:      p.Roles.Strings(),
		Verified:   p.Verified,
	})
}

func principalResponse(p domain.Principal) authsdk.PrincipalResponse {
	return authsdk.PrincipalResponse{
		ID:         p.ID,
		Identifier: p.Identifier,
		Roles:      p.Roles.Strings(),
		Profile: authsdk.ProfileResponse{
			FullName: p.Profile.FullName,
			Phone:    p.Profile.Phone,
			Language: p.Profile.Language,
			Address:  p.Profile.Address,
		},
		Verified:    p.Verified,
		MFAEnrolled: p.MFAEnrolled(),
		Audit: authsdk.AuditResponse{
			CreatedAt:   p.Audit.CreatedAt,
			UpdatedAt:   p.Audit.UpdatedAt,
			LastLoginAt: p.Audit.LastLoginAt,
			LastMFAAt:   p.Audit.LastMFAAt,
		},
	}
}
