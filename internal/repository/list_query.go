package repository

import "gorm.io/gorm"

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// Offset is the number of rows skipped for the current page
func (q *ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// applySort orders by SortBy when it is one of the allowed columns
func applySort(db *gorm.DB, query *ListQuery, fallback string, allowed ...string) *gorm.DB {
	for _, col := range allowed {
		if query.SortBy == col {
			order := col
			if query.SortDir == "desc" {
				order += " DESC"
			}
			return db.Order(order)
		}
	}
	return db.Order(fallback)
}

func applyPage(db *gorm.DB, query *ListQuery) *gorm.DB {
	if query.PerPage > 0 {
		db = db.Offset(query.Offset()).Limit(query.PerPage)
	}
	return db
}
