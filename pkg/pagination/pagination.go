package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Sort describes a requested ordering.
type Sort struct {
	Field      string
	Descending bool
}

// Parse extracts and validates page/limit from query parameters
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	return New(page, limit)
}

// New clamps page and limit into their accepted ranges.
func New(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// ParseSort reads "field:asc|desc" (or "-field") from the sortBy query parameter.
// Unknown fields fall back to fallback.
func ParseSort(c *gin.Context, allowed map[string]bool, fallback Sort) Sort {
	return ParseSortValue(c.Query("sortBy"), allowed, fallback)
}

// ParseSortValue is ParseSort for an already extracted value.
func ParseSortValue(raw string, allowed map[string]bool, fallback Sort) Sort {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	sort := Sort{}
	if strings.HasPrefix(raw, "-") {
		sort.Field = raw[1:]
		sort.Descending = true
	} else if field, dir, ok := strings.Cut(raw, ":"); ok {
		sort.Field = field
		sort.Descending = strings.EqualFold(strings.TrimSpace(dir), "desc")
	} else {
		sort.Field = raw
	}

	sort.Field = strings.TrimSpace(sort.Field)
	if !allowed[sort.Field] {
		return fallback
	}
	return sort
}
