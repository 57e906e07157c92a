package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"projecthub/internal/middleware"
	"projecthub/internal/service"
)

// fail maps a service error onto the HTTP error taxonomy. Anything it does
// not recognise is logged and answered with a bare internal_error.
func (h HandlerSet) fail(c *gin.Context, err error) {
	var policyErr *service.PolicyError
	switch {
	case errors.As(err, &policyErr):
		h.metrics.Denied(policyErr.Reason)
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "reason": policyErr.Reason})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})
	default:
		event := h.log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", middleware.CurrentRequestID(c))
		if identity, ok := middleware.CurrentIdentity(c); ok {
			event = event.Str("user_id", identity.ID)
		}
		event.Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func badBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "invalid request body"})
}
