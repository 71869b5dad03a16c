package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler, requireAuth gin.HandlerFunc) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.POST("/refresh", handler.Refresh)
		auth.POST("/logout", handler.Logout)
		auth.POST("/forgot-password", handler.ForgotPassword)
		auth.POST("/reset-password", handler.ResetPassword)
		auth.POST("/verify-email", handler.VerifyEmail)

		auth.POST("/send-verification-email", requireAuth, handler.SendVerificationEmail)
		auth.POST("/change-password", requireAuth, handler.ChangePassword)
		auth.GET("/me", requireAuth, handler.Me)
	}
}
