package goresource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// RequestFilter runs before a resource operation. It returns nil to let the
// request continue or the response that ends it.
type RequestFilter func(ctx context.Context, req *Request) *Response

// Chain runs filters in order and stops at the first response.
func Chain(filters ...RequestFilter) RequestFilter {
	return func(ctx context.Context, req *Request) *Response {
		for _, f := range filters {
			if resp := f(ctx, req); resp != nil {
				return resp
			}
		}

		return nil
	}
}

type pointerCandidate struct {
	source  string
	pointer string
}

// resolvePointer returns the first candidate with a non-blank pointer, or
// ErrNoPolicyPointer.
func resolvePointer(candidates ...pointerCandidate) (pointerCandidate, error) {
	for _, c := range candidates {
		if p := strings.TrimSpace(c.pointer); p != "" {
			c.pointer = p
			return c, nil
		}
	}

	return pointerCandidate{}, ErrNoPolicyPointer
}

func tagText(t Tag) string {
	s, _ := t.Text()
	return s
}

type resolverLog struct {
	log zerolog.Logger
}

func (l resolverLog) config(req *Request, resolver string, err error) *Response {
	l.log.Error().
		Err(err).
		Str("kind", "config").
		Str("resolver", resolver).
		Str("method", req.Method).
		Str("route", req.Route.Path).
		Msg("route misconfigured")

	return abort(http.StatusInternalServerError, err)
}

func (l resolverLog) client(req *Request, resolver string, err error) {
	l.log.Debug().
		Err(err).
		Str("kind", "client").
		Str("resolver", resolver).
		Str("method", req.Method).
		Str("route", req.Route.Path).
		Msg("rejected client input")
}

type QueryTagConfig struct {
	// Compiler defaults to NewFilterCompiler(CompilerOptions{}).
	Compiler FilterCompiler
	Policies PoliciesAvailable
	Logger   zerolog.Logger
}

// CompileQueryTag compiles the route's query tag, a filter template such as
// "owner:{$session.user.id}", into the request query and marks the query
// trusted. The policy is taken from the search or get tag text, then the
// model tag. Any failure is a route defect and answers 500.
func CompileQueryTag(conf QueryTagConfig) RequestFilter {
	fc := conf.Compiler
	if fc == nil {
		fc = NewFilterCompiler(CompilerOptions{})
	}
	log := resolverLog{log: conf.Logger}

	return func(_ context.Context, req *Request) *Response {
		tpl, isText := req.Route.Tags.Query.Text()
		if !isText || unsupportedMethod(req.Method) {
			return nil
		}

		tags := req.Route.Tags
		ptr, err := resolvePointer(
			pointerCandidate{source: "search", pointer: tagText(tags.Search)},
			pointerCandidate{source: "get", pointer: tagText(tags.Get)},
			pointerCandidate{source: "model", pointer: tags.Model},
		)
		if err != nil {
			return log.config(req, "query", err)
		}

		policies, ok := conf.Policies[ptr.pointer]
		if !ok {
			return log.config(req, "query", fmt.Errorf("%w: '%s' from %s tag", ErrPolicyNotFound, ptr.pointer, ptr.source))
		}

		filters, err := CompileFilter(fc, policies, expandTemplate(tpl, req.ShapeContext()))
		if err != nil {
			return log.config(req, "query", err)
		}

		if req.QueryValidated() && req.Query != nil {
			if prev, ok := asFilter(req.Query[QueryKeyFilters]); ok && !prev.IsEmpty() {
				filters = Filter{keyAnd: []any{prev, filters}}
			}
			req.Query[QueryKeyFilters] = filters
		} else {
			req.Query = Object{QueryKeyFilters: filters}
		}

		req.markQueryValidated()

		return nil
	}
}

type SearchTagConfig struct {
	// Compiler defaults to NewFilterCompiler(CompilerOptions{}).
	Compiler FilterCompiler
	Policies PoliciesAvailable
	Fields   FieldsAvailable
	// FilterKey is the query parameter holding the filter. Defaults to "q".
	FilterKey string
	// MaxPageSize bounds perPage. Defaults to DefaultPageSize.
	MaxPageSize int
	Logger      zerolog.Logger
}

// CompileSearchTag turns the raw query of a search request into a trusted
// paging query {filters, page, perPage, sort, fields}. A missing or
// malformed filter is a client error and answers 400.
func CompileSearchTag(conf SearchTagConfig) RequestFilter {
	fc := conf.Compiler
	if fc == nil {
		fc = NewFilterCompiler(CompilerOptions{})
	}
	filterKey := conf.FilterKey
	if filterKey == "" {
		filterKey = "q"
	}
	maxPageSize := conf.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultPageSize
	}
	log := resolverLog{log: conf.Logger}

	return func(_ context.Context, req *Request) *Response {
		tags := req.Route.Tags
		if !tags.Search.Enabled() || unsupportedMethod(req.Method) {
			return nil
		}

		ptr, err := resolvePointer(
			pointerCandidate{source: "search", pointer: tagText(tags.Search)},
			pointerCandidate{source: "model", pointer: tags.Model},
		)
		if err != nil {
			return log.config(req, "search", err)
		}

		policies, ok := conf.Policies[ptr.pointer]
		if !ok {
			return log.config(req, "search", fmt.Errorf("%w: '%s' from %s tag", ErrPolicyNotFound, ptr.pointer, ptr.source))
		}

		fields, ok := conf.Fields[ptr.pointer]
		if !ok {
			return log.config(req, "search", fmt.Errorf("%w: '%s' from %s tag", ErrFieldsNotFound, ptr.pointer, ptr.source))
		}

		query := req.Query
		if query == nil {
			query = Object{}
		}

		src, _ := query[filterKey].(string)
		filters, err := CompileFilter(fc, policies, src)
		if err != nil {
			if errors.Is(err, ErrPolicyNotFound) {
				return log.config(req, "search", err)
			}

			log.client(req, "search", err)
			resp := failure(http.StatusBadRequest, ErrSearchFilterParser.Error(), err.Error())
			return &resp
		}

		if req.QueryValidated() {
			if prev, ok := asFilter(query[QueryKeyFilters]); ok {
				filters = And(prev, filters)
			}
		}

		page, ok := toInt(query[QueryKeyPage])
		if !ok {
			page = 1
		}
		perPage, _ := toInt(query[QueryKeyPerPage])
		sortSrc, _ := query[QueryKeySort].(string)

		req.Query = Object{
			QueryKeyFilters: filters,
			QueryKeyPage:    page,
			QueryKeyPerPage: NormalizePerPage(perPage, maxPageSize),
			QueryKeySort:    CompileSort(fields, sortSrc),
			QueryKeyFields:  fields,
		}
		req.markQueryValidated()

		return nil
	}
}

type GetTagConfig struct {
	Fields FieldsAvailable
	Logger zerolog.Logger
}

// CompileGetTag sets the trusted projection of single record reads from the
// fieldset named by the get tag text, then the model tag.
func CompileGetTag(conf GetTagConfig) RequestFilter {
	log := resolverLog{log: conf.Logger}

	return func(_ context.Context, req *Request) *Response {
		tags := req.Route.Tags
		if !tags.Get.Enabled() || unsupportedMethod(req.Method) {
			return nil
		}

		ptr, err := resolvePointer(
			pointerCandidate{source: "get", pointer: tagText(tags.Get)},
			pointerCandidate{source: "model", pointer: tags.Model},
		)
		if err != nil {
			return log.config(req, "get", err)
		}

		fields, ok := conf.Fields[ptr.pointer]
		if !ok {
			return log.config(req, "get", fmt.Errorf("%w: '%s' from %s tag", ErrFieldsNotFound, ptr.pointer, ptr.source))
		}

		if req.QueryValidated() && req.Query != nil {
			req.Query[QueryKeyFields] = fields
		} else {
			req.Query = Object{QueryKeyFields: fields}
		}
		req.markQueryValidated()

		return nil
	}
}
