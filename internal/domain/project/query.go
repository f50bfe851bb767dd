package project

import (
	"fmt"
	"net/url"
	"strconv"
)

// List paging and sorting defaults, matching the dashboard's initial view.
const (
	DefaultPage     = 1
	DefaultPageSize = 12
	DefaultSortBy   = "last_updated"
	DefaultSortDir  = "desc"
)

// SortKeys is the whitelist of fields a list may be ordered by.
var SortKeys = map[string]bool{
	"title":        true,
	"owner":        true,
	"status":       true,
	"health":       true,
	"progress":     true,
	"last_updated": true,
}

// ListQuery is the normalized identity of a list read: paging, sorting and
// filters. Two queries with equal fields address the same cache entry
// regardless of how they were built.
type ListQuery struct {
	Page           int
	PageSize       int
	SortBy         string
	SortDir        string
	Status         Status
	Owner          string
	Tag            string
	Health         Health
	Search         string
	IncludeDeleted bool
}

// Normalize returns the query with defaults filled and the sort clause
// clamped to the whitelist.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if !SortKeys[q.SortBy] {
		q.SortBy = DefaultSortBy
	}
	if q.SortDir != "asc" && q.SortDir != "desc" {
		q.SortDir = DefaultSortDir
	}
	return q
}

// Key returns the canonical string identity of the normalized query, used
// for cache addressing and fetch de-duplication.
func (q ListQuery) Key() string {
	q = q.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("page_size", strconv.Itoa(q.PageSize))
	v.Set("sort_by", q.SortBy)
	v.Set("sort_dir", q.SortDir)
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.Owner != "" {
		v.Set("owner", q.Owner)
	}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.Health != "" {
		v.Set("health", string(q.Health))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.IncludeDeleted {
		v.Set("include_deleted", "true")
	}
	// url.Values.Encode sorts by key, so field order never matters.
	return v.Encode()
}

// ParseListKey reconstructs a query from its canonical key string.
func ParseListKey(key string) (ListQuery, error) {
	v, err := url.ParseQuery(key)
	if err != nil {
		return ListQuery{}, fmt.Errorf("parsing list key: %w", err)
	}
	q := ListQuery{
		SortBy:         v.Get("sort_by"),
		SortDir:        v.Get("sort_dir"),
		Status:         Status(v.Get("status")),
		Owner:          v.Get("owner"),
		Tag:            v.Get("tag"),
		Health:         Health(v.Get("health")),
		Search:         v.Get("search"),
		IncludeDeleted: v.Get("include_deleted") == "true",
	}
	q.Page, _ = strconv.Atoi(v.Get("page"))
	q.PageSize, _ = strconv.Atoi(v.Get("page_size"))
	return q.Normalize(), nil
}

// Values returns the query as request parameters for the list endpoint.
func (q ListQuery) Values() url.Values {
	v, err := url.ParseQuery(q.Key())
	if err != nil {
		// Key always produces a valid query string.
		panic(fmt.Sprintf("project: invalid list query key: %v", err))
	}
	return v
}
