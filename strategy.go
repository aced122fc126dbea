package goresource

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Keys of a trusted query object.
const (
	QueryKeyFilters = "filters"
	QueryKeyPage    = "page"
	QueryKeyPerPage = "perPage"
	QueryKeySort    = "sort"
	QueryKeyFields  = "fields"
)

// PageData is the pagination metadata of a search result. When there are no
// records Current is 1 and TotalPages is 0.
type PageData struct {
	Current      int `json:"current"`
	CurrentCount int `json:"currentCount"`
	MaxPerPage   int `json:"maxPerPage"`
	TotalPages   int `json:"totalPages"`
	TotalCount   int `json:"totalCount"`
}

type SearchResult struct {
	Data  []Object `json:"data"`
	Pages PageData `json:"pages"`
}

// PagedSearchParams is the input of a SearchStrategy. Page is 1-based.
type PagedSearchParams struct {
	Filters Filter
	Page    int
	PerPage int
	Sort    Orderings
	Fields  FieldSet
}

// PagedSearchParamsFrom reads paging input from a trusted query object.
// A missing or unreadable page means the first page; a missing perPage
// leaves the choice to the strategy.
func PagedSearchParamsFrom(query Object) PagedSearchParams {
	params := PagedSearchParams{Filters: Filter{}, Page: 1}

	if f, ok := asFilter(query[QueryKeyFilters]); ok {
		params.Filters = f
	}
	if page, ok := toInt(query[QueryKeyPage]); ok {
		params.Page = page
	}
	if perPage, ok := toInt(query[QueryKeyPerPage]); ok {
		params.PerPage = perPage
	}
	if sort, ok := query[QueryKeySort].(Orderings); ok {
		params.Sort = sort
	}
	switch fields := query[QueryKeyFields].(type) {
	case FieldSet:
		params.Fields = fields
	case map[string]bool:
		params.Fields = fields
	}

	return params
}

func toInt(v any) (int, bool) {
	switch vt := v.(type) {
	case int:
		return vt, true
	case int32:
		return int(vt), true
	case int64:
		return int(vt), true
	case float64:
		if math.IsNaN(vt) || math.IsInf(vt, 0) {
			return 0, false
		}
		return int(vt), true
	case json.Number:
		n, err := vt.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(vt))
		return n, err == nil
	default:
		return 0, false
	}
}

// SearchStrategy runs a paginated search against a model.
type SearchStrategy interface {
	Execute(ctx context.Context, model Model, params PagedSearchParams) (*SearchResult, error)
}

// SkipAndLimit paginates with count, offset and limit. Pages before the
// first resolve to the first page and pages past the end to the last one.
type SkipAndLimit struct {
	// PerPage is used when the params carry none. Zero means DefaultPerPage.
	PerPage int
}

var _ SearchStrategy = SkipAndLimit{}

func (s SkipAndLimit) Execute(ctx context.Context, model Model, params PagedSearchParams) (*SearchResult, error) {
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = s.PerPage
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	filters := params.Filters
	if filters == nil {
		filters = Filter{}
	}

	totalCount, err := model.Count(ctx, SearchParams{Filters: filters})
	if err != nil {
		return nil, err
	}

	totalPages := (totalCount + perPage - 1) / perPage

	current := params.Page - 1
	if current < 0 || totalPages == 0 {
		current = 0
	} else if current >= totalPages {
		current = totalPages - 1
	}

	data, err := model.Search(ctx, SearchParams{
		Filters: filters,
		Offset:  current * perPage,
		Limit:   perPage,
		Sort:    params.Sort,
		Fields:  params.Fields,
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []Object{}
	}

	return &SearchResult{
		Data: data,
		Pages: PageData{
			Current:      current + 1,
			CurrentCount: len(data),
			MaxPerPage:   perPage,
			TotalPages:   totalPages,
			TotalCount:   totalCount,
		},
	}, nil
}
