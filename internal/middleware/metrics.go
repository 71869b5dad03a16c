package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/pkg/metrics"
)

// UnmatchedRoute labels requests that hit no registered route, keeping probe traffic out of the path label.
const UnmatchedRoute = "unmatched"

// Metrics observes request latency per route template and tracks in-flight requests.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.APIInFlight.Inc()
		start := time.Now()
		defer func() {
			metrics.APIInFlight.Dec()

			route := c.FullPath()
			if route == "" {
				route = UnmatchedRoute
			}
			metrics.APILatency.
				WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
				Observe(time.Since(start).Seconds())
		}()

		c.Next()
	}
}
