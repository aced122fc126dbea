package goresource

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Source enumerates the request parts a shape or template may read.
type Source int

const (
	SourceParams Source = iota + 1
	SourceQuery
	SourceBody
	SourceSession
	SourceNow
)

var _sourceNames = map[string]Source{
	"$params":  SourceParams,
	"$query":   SourceQuery,
	"$body":    SourceBody,
	"$session": SourceSession,
	"$now":     SourceNow,
}

// ShapeContext is the read-only view of a request used for expansion.
type ShapeContext struct {
	Params  map[string]string
	Query   Object
	Body    Object
	Session Object
	Now     time.Time
}

// Lookup resolves a dotted path inside one source. An empty path returns
// the whole source.
func (sc ShapeContext) Lookup(src Source, path string) (any, bool) {
	switch src {
	case SourceParams:
		if path == "" {
			return sc.Params, sc.Params != nil
		}
		v, ok := sc.Params[path]
		return v, ok
	case SourceQuery:
		return getPath(sc.Query, path)
	case SourceBody:
		return getPath(sc.Body, path)
	case SourceSession:
		return getPath(sc.Session, path)
	case SourceNow:
		return sc.Now, true
	default:
		return nil, false
	}
}

type Cast string

const (
	CastNone    Cast = ""
	CastNumber  Cast = "number"
	CastBoolean Cast = "boolean"
	CastString  Cast = "string"
)

// ShapeProperty selects a value from a request part and optionally casts it.
type ShapeProperty struct {
	Source Source
	Path   string
	Cast   Cast
}

// Ref parses a reference such as "$params.id" or "$session.user.id".
func Ref(ref string) (ShapeProperty, error) {
	name, path, _ := strings.Cut(strings.TrimSpace(ref), ".")

	src, ok := _sourceNames[name]
	if !ok {
		return ShapeProperty{}, fmt.Errorf("unknown shape source %q", name)
	}

	return ShapeProperty{Source: src, Path: path}, nil
}

// MustRef is Ref for static configuration.
func MustRef(ref string) ShapeProperty {
	prop, err := Ref(ref)
	if err != nil {
		panic(err)
	}

	return prop
}

// As returns a copy of the property with the cast set.
func (p ShapeProperty) As(cast Cast) ShapeProperty {
	p.Cast = cast
	return p
}

// Shape maps dotted target keys to properties.
type Shape map[string]ShapeProperty

// Expand evaluates the shape. Properties whose source value is missing are
// skipped.
func (s Shape) Expand(sc ShapeContext) (Object, error) {
	out := Object{}

	for key, prop := range s {
		v, ok := sc.Lookup(prop.Source, prop.Path)
		if !ok {
			continue
		}

		cast, err := castValue(v, prop.Cast)
		if err != nil {
			return nil, fmt.Errorf("shape key %q: %w", key, err)
		}

		setPath(out, key, cast)
	}

	return out, nil
}

// ShapeGet merges the expanded shape into the query of GET requests.
func ShapeGet(s Shape) RequestFilter {
	return func(_ context.Context, req *Request) *Response {
		if req.Method != http.MethodGet {
			return nil
		}

		values, err := s.Expand(req.ShapeContext())
		if err != nil {
			return abort(http.StatusBadRequest, err)
		}

		if req.Query == nil {
			req.Query = Object{}
		}
		mergeObjects(req.Query, values)

		return nil
	}
}

// ShapePost merges the expanded shape into the body of POST requests.
func ShapePost(s Shape) RequestFilter {
	return shapeBody(http.MethodPost, s)
}

// ShapePatch merges the expanded shape into the body of PATCH requests.
func ShapePatch(s Shape) RequestFilter {
	return shapeBody(http.MethodPatch, s)
}

func shapeBody(method string, s Shape) RequestFilter {
	return func(_ context.Context, req *Request) *Response {
		if req.Method != method {
			return nil
		}

		body, ok := req.BodyObject()
		if !ok {
			return abort(http.StatusConflict, ErrPayloadInvalid)
		}

		values, err := s.Expand(req.ShapeContext())
		if err != nil {
			return abort(http.StatusConflict, err)
		}
		mergeObjects(body, values)

		return nil
	}
}

func castValue(v any, cast Cast) (any, error) {
	switch cast {
	case CastNone:
		return v, nil
	case CastString:
		if t, ok := v.(time.Time); ok {
			return t.Format(time.RFC3339), nil
		}
		return fmt.Sprint(v), nil
	case CastNumber:
		switch vt := v.(type) {
		case int:
			return int64(vt), nil
		case int64:
			return vt, nil
		case float64:
			return vt, nil
		case string:
			s := strings.TrimSpace(vt)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		}
		return nil, fmt.Errorf("cannot cast %v to number", v)
	case CastBoolean:
		switch vt := v.(type) {
		case bool:
			return vt, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(vt)); err == nil {
				return b, nil
			}
		case int:
			return vt != 0, nil
		case int64:
			return vt != 0, nil
		case float64:
			return vt != 0, nil
		}
		return nil, fmt.Errorf("cannot cast %v to boolean", v)
	default:
		return nil, fmt.Errorf("unknown cast %q", cast)
	}
}

var _templateRe = regexp.MustCompile(`\{\s*(\$[a-z]+(?:\.[A-Za-z0-9_-]+)*)\s*\}`)

// expandTemplate substitutes "{$source.path}" references in a filter
// template with filter-language literals. Unresolvable references become an
// empty string literal.
func expandTemplate(tpl string, sc ShapeContext) string {
	return _templateRe.ReplaceAllStringFunc(tpl, func(match string) string {
		prop, err := Ref(_templateRe.FindStringSubmatch(match)[1])
		if err != nil {
			return `""`
		}

		v, ok := sc.Lookup(prop.Source, prop.Path)
		if !ok || v == nil {
			return `""`
		}

		return filterLiteral(v)
	})
}

var _literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// filterLiteral renders v so the filter lexer reads it back as one value.
func filterLiteral(v any) string {
	switch vt := v.(type) {
	case bool:
		return strconv.FormatBool(vt)
	case int:
		return strconv.Itoa(vt)
	case int64:
		return strconv.FormatInt(vt, 10)
	case float64:
		return strconv.FormatFloat(vt, 'f', -1, 64)
	case time.Time:
		// Quoted RFC3339 keeps the time of day; date policies parse it.
		return `"` + vt.UTC().Format(time.RFC3339) + `"`
	case string:
		if _, err := strconv.ParseInt(vt, 10, 64); err == nil {
			return vt
		}
		return `"` + _literalEscaper.Replace(vt) + `"`
	default:
		return `"` + _literalEscaper.Replace(fmt.Sprint(v)) + `"`
	}
}

func getPath(obj Object, path string) (any, bool) {
	if obj == nil {
		return nil, false
	}
	if path == "" {
		return obj, true
	}

	var cur any = obj
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}

	return cur, true
}

func setPath(obj Object, path string, v any) {
	parts := strings.Split(path, ".")
	cur := obj

	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}

	cur[parts[len(parts)-1]] = v
}

// mergeObjects deep-merges src into dst.
func mergeObjects(dst, src Object) {
	for k, v := range src {
		srcObj, srcIsObj := v.(map[string]any)
		dstObj, dstIsObj := dst[k].(map[string]any)
		if srcIsObj && dstIsObj {
			mergeObjects(dstObj, srcObj)
			continue
		}
		dst[k] = v
	}
}
