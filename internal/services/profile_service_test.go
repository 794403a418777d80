package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatelink/marketplace/internal/auth"
	"estatelink/marketplace/internal/models"
)

func TestEnsureProfile_StableID(t *testing.T) {
	repo := newFakeProfileRepo()
	cfg := testConfig()
	svc := NewProfileService(repo, cfg.ProfileIDNamespace)
	claims := &auth.IdentityClaims{
		Email:            "sam@example.com",
		Name:             "Sam",
		UserType:         models.RoleBuyer,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "idp|123"},
	}

	first, err := svc.EnsureProfile(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, auth.ProfileIDFromSubject(cfg.ProfileIDNamespace, "idp|123"), first.ID)

	claims.Name = "Sam Lee"
	second, err := svc.EnsureProfile(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := svc.GetProfile(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam Lee", stored.Name)
	assert.Len(t, repo.profiles, 1)
}
