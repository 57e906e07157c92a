package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"projecthub/internal/metrics"
	"projecthub/internal/models"
	"projecthub/internal/security"
	"projecthub/internal/service"
)

const (
	claimsKey   = "access_claims"
	identityKey = "identity"
)

// Authenticator resolves a bearer token to its claims, including the
// revocation check.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*security.AccessClaims, error)
}

// Auth rejects the request unless it carries a valid, unrevoked credential.
// It runs before any handler; a revocation store failure answers 500.
func Auth(auth Authenticator, log zerolog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			m.AuthCheck(metrics.OutcomeMissing)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := auth.Authenticate(c.Request.Context(), tokenStr)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrTokenRevoked):
			m.AuthCheck(metrics.OutcomeRevoked)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token_revoked"})
			return
		case errors.Is(err, service.ErrUnauthorized):
			m.AuthCheck(metrics.OutcomeInvalid)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		default:
			m.AuthCheck(metrics.OutcomeStoreError)
			log.Error().
				Err(err).
				Str("request_id", CurrentRequestID(c)).
				Msg("revocation check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}

		m.AuthCheck(metrics.OutcomeOK)
		c.Set(claimsKey, claims)
		c.Set(identityKey, claims.Identity)

		c.Next()
	}
}

// CurrentIdentity returns the identity stored by Auth.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

func CurrentClaims(c *gin.Context) (*security.AccessClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.AccessClaims)
	return claims, ok && claims != nil
}
