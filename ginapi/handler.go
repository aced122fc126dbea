package ginapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/Alp4ka/goresource"
)

const (
	requestKey = "goresource.request"
	// SessionKey is the gin context key upstream middleware stores the
	// session object under. Templates read it as $session.
	SessionKey = "goresource.session"
)

// Operation is a resource method.
type Operation func(ctx context.Context, req *goresource.Request) goresource.Response

// Endpoint is one route bound to an operation.
type Endpoint struct {
	Method    string
	Path      string
	Tags      goresource.Tags
	Filters   []goresource.RequestFilter
	Operation Operation
}

// Handle registers the endpoint. Its filters run in order before the
// operation, all on the same request.
func Handle(r gin.IRoutes, ep Endpoint) {
	route := goresource.Route{Method: ep.Method, Path: ep.Path, Tags: ep.Tags}

	handlers := make([]gin.HandlerFunc, 0, len(ep.Filters)+2)
	handlers = append(handlers, bind(route))
	handlers = append(handlers, lo.Map(ep.Filters, func(f goresource.RequestFilter, _ int) gin.HandlerFunc {
		return Filter(f)
	})...)
	handlers = append(handlers, operation(ep.Operation))

	r.Handle(ep.Method, ep.Path, handlers...)
}

// Mount binds the operations of res under path:
//
//	POST   path      Create
//	GET    path      Search
//	PATCH  path/:id  Update
//	PUT    path/:id  Update
//	GET    path/:id  Get
//	DELETE path/:id  Remove
//
// The search tag is kept on the search route only and the get tag on the get
// route only. Other tags apply to every route.
func Mount(r gin.IRoutes, path string, res goresource.Resource, tags goresource.Tags, filters ...goresource.RequestFilter) {
	path = strings.TrimSuffix(path, "/")
	item := path + "/:id"

	plain := tags
	plain.Search, plain.Get = goresource.Tag{}, goresource.Tag{}

	search := plain
	search.Search = tags.Search

	get := plain
	get.Get = tags.Get

	for _, ep := range []Endpoint{
		{Method: http.MethodPost, Path: path, Tags: plain, Operation: res.Create},
		{Method: http.MethodGet, Path: path, Tags: search, Operation: res.Search},
		{Method: http.MethodPatch, Path: item, Tags: plain, Operation: res.Update},
		{Method: http.MethodPut, Path: item, Tags: plain, Operation: res.Update},
		{Method: http.MethodGet, Path: item, Tags: get, Operation: res.Get},
		{Method: http.MethodDelete, Path: item, Tags: plain, Operation: res.Remove},
	} {
		ep.Filters = filters
		Handle(r, ep)
	}
}

// Filter adapts a RequestFilter to gin. It must run after the request was
// bound by Handle.
func Filter(f goresource.RequestFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := Request(c)
		if !ok {
			_ = c.Error(errors.New("resource request not bound"))
			c.AbortWithStatusJSON(http.StatusInternalServerError, goresource.ErrorBody{Error: "request not bound"})
			return
		}

		if resp := f(c.Request.Context(), req); resp != nil {
			write(c, *resp)
			c.Abort()
			return
		}

		c.Next()
	}
}

// Request returns the resource request bound to the gin context.
func Request(c *gin.Context) (*goresource.Request, bool) {
	v, ok := c.Get(requestKey)
	if !ok {
		return nil, false
	}
	req, ok := v.(*goresource.Request)

	return req, ok
}

func bind(route goresource.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := NewRequest(c, route)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusConflict, goresource.ErrorBody{Error: goresource.ErrPayloadInvalid.Error()})
			return
		}

		c.Set(requestKey, req)
		c.Next()
	}
}

func operation(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := Request(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, goresource.ErrorBody{Error: "request not bound"})
			return
		}

		write(c, op(c.Request.Context(), req))
	}
}

// NewRequest reads the path params, the query and the JSON body of c. Query
// values are strings, or lists of strings when repeated.
func NewRequest(c *gin.Context, route goresource.Route) (*goresource.Request, error) {
	req := goresource.NewRequest(c.Request.Method, route)

	for _, p := range c.Params {
		req.Params[p.Key] = p.Value
	}

	for key, values := range c.Request.URL.Query() {
		if len(values) == 1 {
			req.Query[key] = values[0]
			continue
		}
		req.Query[key] = lo.Map(values, func(v string, _ int) any { return v })
	}

	if session, ok := c.Get(SessionKey); ok {
		if obj, ok := session.(map[string]any); ok {
			req.Session = obj
		}
	}

	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return req, nil
	}

	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		return nil, err
	}
	req.Body = body

	return req, nil
}

func write(c *gin.Context, resp goresource.Response) {
	if resp.Body == nil {
		c.Status(resp.Status)
		return
	}

	c.JSON(resp.Status, resp.Body)
}
