package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/monitoring"
	"github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/response"
)

// Health evaluates the readiness probes. Any probe that is not up yields 503.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			response.Success(c, http.StatusOK, monitoring.HealthReport{Status: monitoring.StatusUp, Checks: []monitoring.ProbeResult{}})
			return
		}

		report := manager.Evaluate(c.Request.Context())
		if !report.Healthy() {
			failing := make([]string, 0, len(report.Checks))
			for _, check := range report.Checks {
				if check.Status != monitoring.StatusUp {
					failing = append(failing, check.Component)
				}
			}
			response.Error(c, errors.New("SERVICE_UNAVAILABLE", "Unavailable: "+strings.Join(failing, ", "), http.StatusServiceUnavailable))
			return
		}
		response.Success(c, http.StatusOK, report)
	}
}
