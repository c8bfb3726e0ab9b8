package utils

import (
	"net/http"
	"strconv"
	"strings"
)

type QueryOptions struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// Skip is the number of documents before the requested page.
func (q QueryOptions) Skip() int64 {
	return int64((q.Page - 1) * q.Limit)
}

func ParseQueryOptions(r *http.Request) QueryOptions {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return QueryOptions{
		Page:   page,
		Limit:  limit,
		Status: strings.TrimSpace(q.Get("status")),
		Search: strings.TrimSpace(q.Get("search")),
	}
}
