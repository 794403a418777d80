package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"estatelink/marketplace/internal/auth"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/services"
)

const (
	// ContextKeyProfileID holds the key for the caller's profile ID in Gin context.
	ContextKeyProfileID = "profileID"
	// ContextKeyRole holds the key for the caller's role in Gin context.
	ContextKeyRole = "role"
)

// AuthMiddleware validates the identity provider's session token and makes sure the
// caller has a profile before any handler runs.
func AuthMiddleware(jwtSecret string, profiles services.IProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "variant": "destructive"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "variant": "destructive"})
			return
		}

		claims, err := auth.ValidateIdentityToken(parts[1], jwtSecret)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid or expired token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg, "variant": "destructive"})
			return
		}

		profile, err := profiles.EnsureProfile(c.Request.Context(), claims)
		if err != nil {
			logging.GetLogger().WithError(err).WithField("subject", claims.Subject).Error("Failed to ensure profile")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile. Please try again.", "variant": "destructive"})
			return
		}

		c.Set(ContextKeyProfileID, profile.ID)
		c.Set(ContextKeyRole, claims.UserType)

		c.Next()
	}
}

// RequireRole rejects callers whose role is not in roles. Assumes AuthMiddleware runs first.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to do this", "variant": "destructive"})
	}
}

// ActorFrom returns the authenticated caller stored by AuthMiddleware.
// The zero Actor is returned for unauthenticated requests.
func ActorFrom(c *gin.Context) models.Actor {
	var actor models.Actor
	if v, ok := c.Get(ContextKeyProfileID); ok {
		actor.ProfileID, _ = v.(string)
	}
	if v, ok := c.Get(ContextKeyRole); ok {
		actor.Role, _ = v.(models.Role)
	}
	return actor
}
