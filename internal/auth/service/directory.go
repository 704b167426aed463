package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/aussiebroadwan/farmportal/pkg/cryptox"
	"github.com/aussiebroadwan/farmportal/pkg/idx"
	"github.com/aussiebroadwan/farmportal/pkg/slogx"
	"github.com/go-playground/validator/v10"
)

// Demo principal created by SeedDemo.
const (
	DemoIdentifier = "farmer@example.com"
	DemoPassword   = "password"
)

// NewPrincipal is the input to DirectoryService.Create.
type NewPrincipal struct {
	Identifier string   `validate:"required,email,max=254"`
	Password   string   `validate:"required,max=1024"`
	Roles      []string `validate:"required,min=1,dive,required"`
	Profile    domain.Profile
	Verified   bool
	CreatedBy  string `validate:"required"`
}

// DirectoryService manages principals. Sessions only read the directory; this
// service is what the CLI, the seeder and tests use to populate it.
type DirectoryService struct {
	Store    store.Store
	Validate *validator.Validate
	Now      func() time.Time
}

func (s *DirectoryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *DirectoryService) validate() *validator.Validate {
	if s.Validate == nil {
		s.Validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return s.Validate
}

// Create validates in, hashes the password and stores a new principal.
func (s *DirectoryService) Create(ctx context.Context, in NewPrincipal) (domain.Principal, error) {
	return s.create(ctx, s.Store.Principals(), in)
}

func (s *DirectoryService) create(ctx context.Context, repo store.Principals, in NewPrincipal) (domain.Principal, error) {
	in.Identifier = domain.NormalizeIdentifier(in.Identifier)
	if err := s.validate().Struct(in); err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidPrincipal, err)
	}

	roles, err := domain.ParseRoles(in.Roles)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidPrincipal, err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	p := domain.Principal{
		ID:           idx.NewAt(now).String(),
		Identifier:   in.Identifier,
		PasswordHash: hash,
		Roles:        roles,
		Profile:      in.Profile,
		Verified:     in.Verified,
		Audit: domain.Audit{
			CreatedAt: now,
			CreatedBy: in.CreatedBy,
			UpdatedAt: now,
			UpdatedBy: in.CreatedBy,
		},
	}

	if err := repo.Create(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Principal{}, ErrIdentifierTaken
		}
		return domain.Principal{}, fmt.Errorf("create principal: %w", err)
	}

	slogx.FromContext(ctx).Info("principal created",
		slog.String("principal_id", p.ID),
		slog.Any("roles", p.Roles.Strings()),
	)
	return p, nil
}

// Get returns the principal with id.
func (s *DirectoryService) Get(ctx context.Context, id string) (domain.Principal, error) {
	return s.Store.Principals().GetByID(ctx, id)
}

// SetDisabled enables or disables a principal. Outstanding tokens stop
// passing Authorize on their next use.
func (s *DirectoryService) SetDisabled(ctx context.Context, id string, disabled bool, by string) error {
	return s.Store.Principals().SetDisabled(ctx, id, disabled, by, s.now())
}

// SeedDemo creates the demo farmer when the directory is empty. It reports
// whether a principal was created. The emptiness check and the insert share
// a transaction, and losing the insert to another replica is not an error.
func (s *DirectoryService) SeedDemo(ctx context.Context) (bool, error) {
	created := false
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.Principals().Count(ctx)
		if err != nil {
			return fmt.Errorf("count principals: %w", err)
		}
		if n > 0 {
			return nil
		}

		_, err = s.create(ctx, tx.Principals(), NewPrincipal{
			Identifier: DemoIdentifier,
			Password:   DemoPassword,
			Roles:      []string{domain.RoleFarmer.String()},
			Profile:    domain.Profile{FullName: "Kiran", Language: "hi"},
			Verified:   true,
			CreatedBy:  "seed",
		})
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, ErrIdentifierTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return created, nil
}
