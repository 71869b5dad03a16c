package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/handlers"
	"github.com/charlesng35/gatekeep/internal/middleware"
	"github.com/charlesng35/gatekeep/internal/permissions"
)

var permAuditView = permissions.Name(permissions.EntityAudit, permissions.ActionView)

func registerAuditRoutes(api *gin.RouterGroup, handler *handlers.AuditHandler, resolver *permissions.Resolver) {
	api.GET("/audit", middleware.RequirePermission(resolver, permAuditView), handler.List)
}
