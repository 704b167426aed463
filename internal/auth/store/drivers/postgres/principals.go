package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
)

type principalsRepo struct {
	q *queries
}

func (r *principalsRepo) FindByIdentifier(ctx context.Context, identifier string) (domain.Principal, error) {
	row, err := r.q.GetPrincipalByIdentifier(ctx, domain.NormalizeIdentifier(identifier))
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	return rowToPrincipal(row)
}

func (r *principalsRepo) GetByID(ctx context.Context, id string) (domain.Principal, error) {
	row, err := r.q.GetPrincipalByID(ctx, id)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	return rowToPrincipal(row)
}

func (r *principalsRepo) Create(ctx context.Context, p domain.Principal) error {
	return mapConstraint(r.q.CreatePrincipal(ctx, principalToRow(p)))
}

func (r *principalsRepo) UpdateAuditField(ctx context.Context, id string, field domain.AuditField, at time.Time) error {
	switch field {
	case domain.AuditLastLogin:
		return requireRow(r.q.TouchLastLogin(ctx, id, at.UTC()))
	case domain.AuditLastMFA:
		return requireRow(r.q.TouchLastMFA(ctx, id, at.UTC()))
	default:
		return store.ErrInvalidAuditField
	}
}

func (r *principalsRepo) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	return requireRow(r.q.UpdatePasswordHash(ctx, id, hash, at.UTC()))
}

func (r *principalsRepo) UpdateMFASecret(ctx context.Context, id string, sealed *string, at time.Time) error {
	return requireRow(r.q.UpdateMFASecret(ctx, id, optionalString(sealed), at.UTC()))
}

func (r *principalsRepo) SetDisabled(ctx context.Context, id string, disabled bool, by string, at time.Time) error {
	return requireRow(r.q.SetDisabled(ctx, id, disabled, by, at.UTC()))
}

func (r *principalsRepo) Count(ctx context.Context) (int, error) {
	return r.q.CountPrincipals(ctx)
}
