package goresource

import (
	"net/http"
	"strings"
	"time"
)

// Tag is a route tag value: either text or a boolean flag.
type Tag struct {
	text   string
	isText bool
	on     bool
}

// TextTag returns a tag carrying s.
func TextTag(s string) Tag {
	return Tag{text: s, isText: true}
}

// FlagTag returns a boolean tag.
func FlagTag(on bool) Tag {
	return Tag{on: on}
}

// Text returns the text of the tag and whether the tag is text at all.
func (t Tag) Text() (string, bool) {
	return t.text, t.isText
}

// Enabled reports whether the tag is set: true, or non-empty text.
func (t Tag) Enabled() bool {
	if t.isText {
		return t.text != ""
	}

	return t.on
}

// Tags is the declarative route metadata consumed by request filters and
// the controller.
type Tags struct {
	// Query holds a filter template applied to every request on the route.
	Query Tag
	// Search enables search compilation. Text names the policy/fieldset.
	Search Tag
	// Get enables field projection. Text names the fieldset.
	Get Tag
	// Model names the model and is the fallback policy pointer.
	Model string
	// Connection overrides the default connection name.
	Connection string
}

type Route struct {
	Method string
	Path   string
	Tags   Tags
}

// Request is the per-request view of the resource layer. Trust markers are
// unexported: the body marker is set through MarkBodyValidated by body
// validators, the query marker only by the tag resolvers of this package.
type Request struct {
	Method  string
	Route   Route
	Params  map[string]string
	Query   Object
	Body    any
	Session Object

	bodyValidated  bool
	queryValidated bool
}

// NewRequest returns a request with empty, non-nil parts.
func NewRequest(method string, route Route) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		Route:   route,
		Params:  map[string]string{},
		Query:   Object{},
		Session: Object{},
	}
}

func (r *Request) BodyValidated() bool  { return r.bodyValidated }
func (r *Request) QueryValidated() bool { return r.queryValidated }

// MarkBodyValidated records that the body was validated by an upstream
// filter. Only validators may call it.
func (r *Request) MarkBodyValidated() { r.bodyValidated = true }

func (r *Request) markQueryValidated() { r.queryValidated = true }

// ID returns the trimmed "id" path parameter.
func (r *Request) ID() string {
	return strings.TrimSpace(r.Params["id"])
}

// BodyObject returns the body if it is an object.
func (r *Request) BodyObject() (Object, bool) {
	obj, ok := r.Body.(map[string]any)
	return obj, ok
}

// ShapeContext exposes the request parts for shape and template expansion.
func (r *Request) ShapeContext() ShapeContext {
	body, _ := r.BodyObject()

	return ShapeContext{
		Params:  r.Params,
		Query:   r.Query,
		Body:    body,
		Session: r.Session,
		Now:     time.Now().UTC(),
	}
}

// _unsupportedMethods carry no meaningful query or body for the tag
// resolvers.
var _unsupportedMethods = map[string]bool{
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
	http.MethodConnect: true,
}

func unsupportedMethod(method string) bool {
	return _unsupportedMethods[strings.ToUpper(method)]
}
