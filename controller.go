package goresource

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// DefaultConnection is the connection checked out when a route names none.
const DefaultConnection = "main"

// Resource is a controller for one API endpoint. It exposes create, search,
// update, get and remove over the collection named by the route tags.
type Resource interface {
	// Create answers 201 with the id of the new record.
	Create(ctx context.Context, req *Request) Response
	// Search answers 200 with a SearchResult, or 204 when nothing matched.
	Search(ctx context.Context, req *Request) Response
	// Update answers 200 when the change was applied, 404 otherwise.
	Update(ctx context.Context, req *Request) Response
	// Get answers 200 with the record, 404 when it does not exist.
	Get(ctx context.Context, req *Request) Response
	// Remove answers 200 when the record was removed, 404 otherwise.
	Remove(ctx context.Context, req *Request) Response
}

type Config struct {
	// SkipTrustChecks disables the trust marker checks of every gate.
	SkipTrustChecks bool
	// DefaultConnection defaults to "main".
	DefaultConnection string
	Logger            zerolog.Logger
}

// ApiController implements Resource on top of a ModelProvider. The
// connection and the model are resolved per request from the route tags.
type ApiController[C any] struct {
	conf     Config
	gate     Preconditions
	conns    Connections[C]
	models   ModelProvider[C]
	strategy SearchStrategy
	log      zerolog.Logger
}

var _ Resource = (*ApiController[any])(nil)

// NewApiController creates a controller. A nil strategy means SkipAndLimit
// with the default page size.
func NewApiController[C any](
	conf Config,
	conns Connections[C],
	models ModelProvider[C],
	strategy SearchStrategy,
) *ApiController[C] {
	if conf.DefaultConnection == "" {
		conf.DefaultConnection = DefaultConnection
	}
	if strategy == nil {
		strategy = SkipAndLimit{}
	}

	return &ApiController[C]{
		conf:     conf,
		gate:     Preconditions{SkipTrustChecks: conf.SkipTrustChecks},
		conns:    conns,
		models:   models,
		strategy: strategy,
		log:      conf.Logger,
	}
}

// model checks out the connection of the route and resolves its model.
func (c *ApiController[C]) model(ctx context.Context, req *Request) (Model, error) {
	name := req.Route.Tags.Connection
	if name == "" {
		name = c.conf.DefaultConnection
	}

	conn, err := c.conns.Checkout(ctx, name)
	if err != nil {
		return nil, err
	}

	return c.models.GetInstance(conn, req.Route.Tags.Model)
}

// fail maps err to an error response and logs it.
func (c *ApiController[C]) fail(req *Request, op string, err error) Response {
	status := StatusOf(err)

	ev := c.log.Error()
	kind := "storage"
	switch {
	case isConfigError(err):
		kind = "config"
	case status < http.StatusInternalServerError:
		ev = c.log.Debug()
		kind = "client"
	}

	ev.Err(err).
		Str("kind", kind).
		Str("op", op).
		Str("route", req.Route.Path).
		Str("connection", req.Route.Tags.Connection).
		Str("model", req.Route.Tags.Model).
		Int("status", status).
		Msg("resource operation failed")

	msg := err.Error()
	var se *StorageError
	if errors.As(err, &se) && status >= http.StatusInternalServerError {
		msg = ErrStorage.Error()
	}

	return failure(status, msg, nil)
}

func (c *ApiController[C]) Create(ctx context.Context, req *Request) Response {
	if resp := c.gate.ForCreate(req); resp != nil {
		return *resp
	}

	model, err := c.model(ctx, req)
	if err != nil {
		return c.fail(req, "create", err)
	}

	body, _ := req.BodyObject()

	id, err := model.Create(ctx, body)
	if err != nil {
		return c.fail(req, "create", err)
	}

	return created(id)
}

func (c *ApiController[C]) Search(ctx context.Context, req *Request) Response {
	if resp := c.gate.ForSearch(req); resp != nil {
		return *resp
	}

	model, err := c.model(ctx, req)
	if err != nil {
		return c.fail(req, "search", err)
	}

	result, err := c.strategy.Execute(ctx, model, PagedSearchParamsFrom(req.Query))
	if err != nil {
		return c.fail(req, "search", err)
	}
	if len(result.Data) == 0 {
		return noContent()
	}

	return ok(result)
}

func (c *ApiController[C]) Update(ctx context.Context, req *Request) Response {
	if resp := c.gate.ForUpdate(req); resp != nil {
		return *resp
	}

	body, _ := req.BodyObject()
	if len(body) == 0 {
		return ok(nil)
	}

	model, err := c.model(ctx, req)
	if err != nil {
		return c.fail(req, "update", err)
	}

	updated, err := model.Update(ctx, req.ID(), Flatten(body), UpdateParams{
		Filters: c.gate.QueryFilters(req),
	})
	if err != nil {
		return c.fail(req, "update", err)
	}
	if !updated {
		return notFound()
	}

	return ok(nil)
}

func (c *ApiController[C]) Get(ctx context.Context, req *Request) Response {
	if resp := c.gate.ForGet(req); resp != nil {
		return *resp
	}

	model, err := c.model(ctx, req)
	if err != nil {
		return c.fail(req, "get", err)
	}

	record, found, err := model.Get(ctx, req.ID(), GetParams{
		Filters: c.gate.QueryFilters(req),
		Fields:  c.gate.QueryFields(req),
	})
	if err != nil {
		return c.fail(req, "get", err)
	}
	if !found {
		return notFound()
	}

	return ok(record)
}

func (c *ApiController[C]) Remove(ctx context.Context, req *Request) Response {
	if resp := c.gate.ForRemove(req); resp != nil {
		return *resp
	}

	model, err := c.model(ctx, req)
	if err != nil {
		return c.fail(req, "remove", err)
	}

	removed, err := model.Remove(ctx, req.ID(), RemoveParams{
		Filters: c.gate.QueryFilters(req),
	})
	if err != nil {
		return c.fail(req, "remove", err)
	}
	if !removed {
		return notFound()
	}

	return ok(nil)
}
