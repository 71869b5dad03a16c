package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/pkg/pagination"
	"github.com/charlesng35/gatekeep/pkg/response"
)

// queryOptions reads page, limit and sortBy from the query string.
func queryOptions(c *gin.Context) services.QueryOptions {
	params := pagination.Parse(c)
	return services.QueryOptions{
		Page:  params.Page,
		Limit: params.Limit,
		Sort:  pagination.ParseSort(c, services.SortableFields, services.DefaultSort),
	}
}

func writePage[T any](c *gin.Context, page *services.Page[T]) {
	response.SuccessWithMeta(c, http.StatusOK, page.Items, response.NewMeta(page.Page, page.Limit, page.Total))
}
