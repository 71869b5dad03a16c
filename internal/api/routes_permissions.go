package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/handlers"
	"github.com/charlesng35/gatekeep/internal/middleware"
	"github.com/charlesng35/gatekeep/internal/permissions"
)

var (
	permPermissionCreate = permissions.Name(permissions.EntityPermission, permissions.ActionCreate)
	permPermissionView   = permissions.Name(permissions.EntityPermission, permissions.ActionView)
	permPermissionModify = permissions.Name(permissions.EntityPermission, permissions.ActionModify)
	permPermissionDelete = permissions.Name(permissions.EntityPermission, permissions.ActionDelete)
)

func registerPermissionRoutes(api *gin.RouterGroup, handler *handlers.PermissionHandler, resolver *permissions.Resolver) {
	perms := api.Group("/permissions")
	{
		perms.GET("/me", handler.Mine)
		perms.GET("/entities", middleware.RequirePermission(resolver, permPermissionView), handler.Entities)
		perms.POST("", middleware.RequirePermission(resolver, permPermissionCreate), handler.Create)
		perms.GET("", middleware.RequirePermission(resolver, permPermissionView), handler.List)
		perms.GET("/:id", middleware.RequirePermission(resolver, permPermissionView), handler.Get)
		perms.PUT("/:id", middleware.RequirePermission(resolver, permPermissionModify), handler.Update)
		perms.DELETE("/:id", middleware.RequirePermission(resolver, permPermissionDelete), handler.Delete)
	}
}
