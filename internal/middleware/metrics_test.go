package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeep/pkg/metrics"
)

func TestMetricsTracksInFlightRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	before := testutil.ToFloat64(metrics.APIInFlight)
	var during float64

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/users/:id", func(c *gin.Context) {
		during = testutil.ToFloat64(metrics.APIInFlight)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/USR123", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, before+1, during)
	require.Equal(t, before, testutil.ToFloat64(metrics.APIInFlight))
}

func TestMetricsLabelsRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/roles/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.NoRoute(NotFoundHandler)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/roles/ROL1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	require.Contains(t, body, `gatekeep_api_latency_seconds_count{method="GET",path="/api/roles/:id",status="200"}`)
	require.Contains(t, body, `gatekeep_api_latency_seconds_count{method="GET",path="unmatched",status="404"}`)
	require.NotContains(t, body, "wp-login")
}
