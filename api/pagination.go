package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// PaginationMeta describes the page returned by a list endpoint. It travels
// in response headers so list bodies stay plain JSON arrays.
type PaginationMeta struct {
	TotalCount int
	Limit      int
	Offset     int
	HasMore    bool
}

// parsePagination reads "limit" and "offset" query parameters. Missing,
// non-numeric or non-positive values fall back to limit=defaultPageLimit and
// offset=0; limit is capped at maxPageLimit.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit = defaultPageLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	limit = min(limit, maxPageLimit)

	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// paginate returns the requested window of items. An offset past the end
// yields an empty, non-nil page.
func paginate[T any](items []T, limit, offset int) ([]T, PaginationMeta) {
	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)
	meta := PaginationMeta{
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    end < total,
	}
	page := make([]T, 0, end-start)
	return append(page, items[start:end]...), meta
}

func writePaginationHeaders(w http.ResponseWriter, meta PaginationMeta) {
	h := w.Header()
	h.Set("X-Total-Count", strconv.Itoa(meta.TotalCount))
	h.Set("X-Limit", strconv.Itoa(meta.Limit))
	h.Set("X-Offset", strconv.Itoa(meta.Offset))
	h.Set("X-Has-More", strconv.FormatBool(meta.HasMore))
}
