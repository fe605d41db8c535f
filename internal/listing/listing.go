// Package listing implements the client-side list pipeline shared by the
// admin views: free-text filter, categorical filters, sort, and fixed-size
// pagination over a collection held in memory.
package listing

import (
	"sort"
	"strings"
)

type Query struct {
	Search   string
	Filters  map[string]string
	SortBy   string
	SortDesc bool
	Page     int
	PageSize int
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// SearchFields returns the strings the free-text filter matches against.
type SearchFields[T any] func(item T) []string

// FilterMatch reports whether an item satisfies one categorical filter.
type FilterMatch[T any] func(item T, key, value string) bool

// Less orders two items under the given sort key.
type Less[T any] func(a, b T, sortBy string) bool

// Apply runs the full pipeline. The result is always a subset of src whose
// members all satisfy the search and filter predicates. A filter value of ""
// or "all" is treated as unset.
func Apply[T any](src []T, q Query, fields SearchFields[T], match FilterMatch[T], less Less[T]) Page[T] {
	filtered := make([]T, 0, len(src))
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	for _, item := range src {
		if needle != "" && !matchesSearch(item, needle, fields) {
			continue
		}
		if !matchesFilters(item, q.Filters, match) {
			continue
		}
		filtered = append(filtered, item)
	}

	if q.SortBy != "" && less != nil {
		sort.SliceStable(filtered, func(i, j int) bool {
			if q.SortDesc {
				return less(filtered[j], filtered[i], q.SortBy)
			}
			return less(filtered[i], filtered[j], q.SortBy)
		})
	}

	return paginate(filtered, q.Page, q.PageSize)
}

func matchesSearch[T any](item T, needle string, fields SearchFields[T]) bool {
	if fields == nil {
		return true
	}
	for _, f := range fields(item) {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func matchesFilters[T any](item T, filters map[string]string, match FilterMatch[T]) bool {
	if match == nil {
		return true
	}
	for key, value := range filters {
		if value == "" || value == "all" {
			continue
		}
		if !match(item, key, value) {
			return false
		}
	}
	return true
}

func paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page <= 0 {
		page = 1
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

// View keeps the query state for one list surface. Changing the search term
// or any filter resets the visible page to 1; changing only the page does not.
type View[T any] struct {
	query  Query
	fields SearchFields[T]
	match  FilterMatch[T]
	less   Less[T]
}

func NewView[T any](pageSize int, fields SearchFields[T], match FilterMatch[T], less Less[T]) *View[T] {
	return &View[T]{
		query:  Query{Page: 1, PageSize: pageSize, Filters: make(map[string]string)},
		fields: fields,
		match:  match,
		less:   less,
	}
}

func (v *View[T]) SetSearch(term string) {
	if v.query.Search != term {
		v.query.Search = term
		v.query.Page = 1
	}
}

func (v *View[T]) SetFilter(key, value string) {
	if v.query.Filters[key] != value {
		v.query.Filters[key] = value
		v.query.Page = 1
	}
}

func (v *View[T]) SetSort(sortBy string, desc bool) {
	v.query.SortBy = sortBy
	v.query.SortDesc = desc
}

func (v *View[T]) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	v.query.Page = page
}

func (v *View[T]) Query() Query {
	return v.query
}

func (v *View[T]) Compute(src []T) Page[T] {
	return Apply(src, v.query, v.fields, v.match, v.less)
}
