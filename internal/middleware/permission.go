package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/gatekeep/internal/permissions"
	"github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/logger"
	"github.com/charlesng35/gatekeep/pkg/metrics"
	"github.com/charlesng35/gatekeep/pkg/response"
)

// RequirePermission ensures the authenticated user's role grants every named permission.
// It must run after Auth.
func RequirePermission(resolver *permissions.Resolver, names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		granted, err := resolver.Permissions(c.Request.Context(), userID)
		if err != nil {
			for _, name := range names {
				metrics.PermissionChecks.WithLabelValues(name, "error").Inc()
			}
			logger.WithModule("permissions").Error("permission lookup failed",
				zap.String("user_id", userID), zap.Error(err))
			response.Error(c, err)
			c.Abort()
			return
		}

		for _, name := range names {
			if !granted.Has(name) {
				metrics.PermissionChecks.WithLabelValues(name, "deny").Inc()
				response.Error(c, errors.ErrForbidden)
				c.Abort()
				return
			}
			metrics.PermissionChecks.WithLabelValues(name, "allow").Inc()
		}
		c.Next()
	}
}
