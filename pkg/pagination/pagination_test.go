package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest("GET", "/api/users", nil)

	params := Parse(ctx)
	require.Equal(t, Params{Page: 1, Limit: 10, Offset: 0}, params)
}

func TestParseClampsValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest("GET", "/api/users?page=3&limit=500", nil)

	params := Parse(ctx)
	require.Equal(t, 3, params.Page)
	require.Equal(t, MaxLimit, params.Limit)
	require.Equal(t, 2*MaxLimit, params.Offset)
}

func TestParseSortValue(t *testing.T) {
	allowed := map[string]bool{"name": true, "createdAt": true}
	fallback := Sort{Field: "createdAt", Descending: true}

	require.Equal(t, Sort{Field: "name"}, ParseSortValue("name:asc", allowed, fallback))
	require.Equal(t, Sort{Field: "name", Descending: true}, ParseSortValue("-name", allowed, fallback))
	require.Equal(t, Sort{Field: "name", Descending: true}, ParseSortValue("name:DESC", allowed, fallback))
	require.Equal(t, fallback, ParseSortValue("password:asc", allowed, fallback))
	require.Equal(t, fallback, ParseSortValue("", allowed, fallback))
}
