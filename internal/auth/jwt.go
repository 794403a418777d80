package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"estatelink/marketplace/internal/models"
)

// IdentityClaims are the claims the identity provider puts in its session token.
// The subject is the provider's user id.
type IdentityClaims struct {
	Email         string      `json:"email"`
	EmailVerified bool        `json:"email_verified"`
	Name          string      `json:"name"`
	UserType      models.Role `json:"user_type"`
	jwt.RegisteredClaims
}

// GenerateIdentityToken signs a token carrying claims. Used by tests and local tooling.
func GenerateIdentityToken(claims IdentityClaims, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, nil
}

// ValidateIdentityToken verifies a token and returns its claims. Tokens without a
// subject or with an unknown user type are rejected.
func ValidateIdentityToken(tokenString string, secretKey string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid JWT: missing subject")
	}
	if claims.UserType == "" {
		claims.UserType = models.RoleBuyer
	}
	if !claims.UserType.IsValid() {
		return nil, fmt.Errorf("invalid JWT: unknown user type %q", claims.UserType)
	}
	return claims, nil
}

// ProfileIDFromSubject maps a provider subject to the profile id space of the
// previous auth system. The mapping is deterministic for a given namespace.
func ProfileIDFromSubject(namespace uuid.UUID, subject string) string {
	return uuid.NewSHA1(namespace, []byte(subject)).String()
}
