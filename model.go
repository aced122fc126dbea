package goresource

import (
	"context"
	"slices"

	"github.com/samber/lo"
)

type (
	// Object is a loosely typed JSON-like record or request part.
	Object = map[string]any

	// Id is an opaque record identifier, usually a string or an integer.
	// Equality is defined by the storage.
	Id = any

	// FieldSet maps field names to an inclusion flag. It drives both the
	// projection of search/get results and the fields a client may sort by.
	FieldSet map[string]bool
)

// Columns returns the included field names in lexical order.
func (f FieldSet) Columns() []string {
	cols := lo.Keys(lo.PickBy(f, func(_ string, include bool) bool { return include }))
	slices.Sort(cols)

	return cols
}

// SearchParams narrows a search.
type SearchParams struct {
	// Filters is never nil after Normalize.
	Filters Filter
	// Offset is the number of records to skip.
	Offset int
	// Limit caps the result. Non-positive means unbounded.
	Limit int
	// Sort empty means storage order.
	Sort Orderings
	// Fields empty means all fields.
	Fields FieldSet
}

// Normalize fills defaults for absent optional values.
func (p SearchParams) Normalize() SearchParams {
	if p.Filters == nil {
		p.Filters = Filter{}
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit < 0 {
		p.Limit = 0
	}

	return p
}

type (
	GetParams struct {
		Filters Filter
		Fields  FieldSet
	}

	UpdateParams struct {
		Filters Filter
	}

	RemoveParams struct {
		Filters Filter
	}
)

// Model is the storage contract of one logical collection of records.
//
// A record that does not match id and filters is not an error: Update and
// Remove report false, Get reports ok == false. Errors are reserved for
// storage failures and are returned as *StorageError.
type Model interface {
	Create(ctx context.Context, data Object) (Id, error)
	Count(ctx context.Context, params SearchParams) (int, error)
	Search(ctx context.Context, params SearchParams) ([]Object, error)
	// Update applies changes, already flattened into dotted paths, to the
	// record identified by id and constrained by params.Filters.
	Update(ctx context.Context, id Id, changes Object, params UpdateParams) (bool, error)
	Get(ctx context.Context, id Id, params GetParams) (Object, bool, error)
	Remove(ctx context.Context, id Id, params RemoveParams) (bool, error)
}

// ModelProvider resolves a Model by logical name against an open connection
// handle. Instances are not guaranteed to be reused across requests.
type ModelProvider[C any] interface {
	GetInstance(conn C, name string) (Model, error)
}

// ModelProviderFunc adapts a function to ModelProvider.
type ModelProviderFunc[C any] func(conn C, name string) (Model, error)

func (f ModelProviderFunc[C]) GetInstance(conn C, name string) (Model, error) {
	return f(conn, name)
}

// Flatten turns nested objects into dotted-path keys:
//
//	{"a": {"b": 1}, "c": 2} -> {"a.b": 1, "c": 2}
//
// Empty nested objects are kept as values.
func Flatten(obj Object) Object {
	out := make(Object, len(obj))
	flattenInto(out, "", obj)

	return out
}

func flattenInto(out Object, prefix string, obj Object) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, key, nested)
			continue
		}

		out[key] = v
	}
}
