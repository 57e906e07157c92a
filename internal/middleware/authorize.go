package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"projecthub/internal/metrics"
	"projecthub/internal/policy"
)

// RequireAction gates a route on an action that does not depend on a
// specific project. Ownership checks happen in the services once the
// project is loaded.
func RequireAction(action policy.Action, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		decision := policy.Authorize(identity, action, policy.Resource{})
		if !decision.Allowed {
			m.Denied(decision.Reason)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":  "forbidden",
				"reason": decision.Reason,
			})
			return
		}

		c.Next()
	}
}
