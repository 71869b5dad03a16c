package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/handlers"
	"github.com/charlesng35/gatekeep/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, health *monitoring.HealthManager) {
	handler := handlers.Health(health)
	r.GET("/health", handler)
	r.GET("/api/health", handler)
}
