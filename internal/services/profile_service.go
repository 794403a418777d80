package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"estatelink/marketplace/internal/auth"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/repository"
)

// IProfileService maps identity-provider users onto local profiles.
type IProfileService interface {
	EnsureProfile(ctx context.Context, claims *auth.IdentityClaims) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

type profileService struct {
	profiles  repository.IProfileRepository
	namespace uuid.UUID
}

// NewProfileService creates a new ProfileService.
func NewProfileService(profiles repository.IProfileRepository, namespace uuid.UUID) IProfileService {
	return &profileService{profiles: profiles, namespace: namespace}
}

// EnsureProfile upserts the profile of the token's subject.
func (s *profileService) EnsureProfile(ctx context.Context, claims *auth.IdentityClaims) (*models.Profile, error) {
	profile, err := s.profiles.Upsert(ctx, &models.Profile{
		ID:            auth.ProfileIDFromSubject(s.namespace, claims.Subject),
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		UserType:      claims.UserType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return profile, nil
}

func (s *profileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return s.profiles.Get(ctx, id)
}
