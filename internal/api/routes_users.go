package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/handlers"
	"github.com/charlesng35/gatekeep/internal/middleware"
	"github.com/charlesng35/gatekeep/internal/permissions"
)

var (
	permUserCreate = permissions.Name(permissions.EntityUser, permissions.ActionCreate)
	permUserView   = permissions.Name(permissions.EntityUser, permissions.ActionView)
	permUserModify = permissions.Name(permissions.EntityUser, permissions.ActionModify)

	permRoleCreate = permissions.Name(permissions.EntityRole, permissions.ActionCreate)
	permRoleView   = permissions.Name(permissions.EntityRole, permissions.ActionView)
	permRoleModify = permissions.Name(permissions.EntityRole, permissions.ActionModify)
	permRoleDelete = permissions.Name(permissions.EntityRole, permissions.ActionDelete)
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler, resolver *permissions.Resolver) {
	users := api.Group("/users")
	{
		users.POST("", middleware.RequirePermission(resolver, permUserCreate), handler.Create)
		users.GET("", middleware.RequirePermission(resolver, permUserView), handler.List)
		users.GET("/:id", middleware.RequirePermission(resolver, permUserView), handler.Get)
		users.PUT("/:id", middleware.RequirePermission(resolver, permUserModify), handler.Update)
		users.DELETE("/:id", middleware.RequirePermission(resolver, permUserModify), handler.Delete)
	}
}

func registerRoleRoutes(api *gin.RouterGroup, handler *handlers.RoleHandler, resolver *permissions.Resolver) {
	roles := api.Group("/roles")
	{
		roles.POST("", middleware.RequirePermission(resolver, permRoleCreate), handler.Create)
		roles.GET("", middleware.RequirePermission(resolver, permRoleView), handler.List)
		roles.GET("/:id", middleware.RequirePermission(resolver, permRoleView), handler.Get)
		roles.PUT("/:id", middleware.RequirePermission(resolver, permRoleModify), handler.Update)
		roles.PUT("/:id/permissions", middleware.RequirePermission(resolver, permRoleModify), handler.SetPermissions)
		roles.DELETE("/:id", middleware.RequirePermission(resolver, permRoleDelete), handler.Delete)
	}
}
