package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/gatekeep/pkg/pagination"
)

// SortableFields lists the fields list endpoints may order by.
var SortableFields = map[string]bool{
	"name":      true,
	"createdAt": true,
	"updatedAt": true,
}

var sortColumns = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// DefaultSort orders newest first.
var DefaultSort = pagination.Sort{Field: "createdAt", Descending: true}

// QueryOptions controls ordering and pagination of list queries.
type QueryOptions struct {
	Page  int
	Limit int
	Sort  pagination.Sort
}

// Page is one page of a list query.
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

func (o QueryOptions) params() pagination.Params {
	return pagination.New(o.Page, o.Limit)
}

// applyQueryOptions orders and pages query. The id tiebreaker keeps pages stable.
func applyQueryOptions(query *gorm.DB, opts QueryOptions) *gorm.DB {
	sort := opts.Sort
	if !SortableFields[sort.Field] {
		sort = DefaultSort
	}
	params := opts.params()

	return query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumns[sort.Field]}, Desc: sort.Descending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: sort.Descending}).
		Offset(params.Offset).
		Limit(params.Limit)
}
