package goresource

import (
	"reflect"
)

// Filter is a native query document:
//
//	{"name": {"$eq": "john"}, "$or": []any{Filter{"age": {"$gt": 40}}, Filter{"vip": true}}}
//
// Field keys map either to a value (implicit $eq) or to an operator document.
// "$and" and "$or" hold lists of sub-filters.
type Filter map[string]any

func (f Filter) IsEmpty() bool {
	return len(f) == 0
}

// And combines non-empty filters conjunctively. A single filter is returned
// as is.
func And(filters ...Filter) Filter {
	return junction(keyAnd, filters)
}

// Or combines non-empty filters disjunctively. A single filter is returned
// as is.
func Or(filters ...Filter) Filter {
	return junction(keyOr, filters)
}

func junction(key string, filters []Filter) Filter {
	items := make([]any, 0, len(filters))
	for _, f := range filters {
		if !f.IsEmpty() {
			items = append(items, f)
		}
	}

	switch len(items) {
	case 0:
		return Filter{}
	case 1:
		return items[0].(Filter)
	default:
		return Filter{key: items}
	}
}

// asFilter accepts both Filter and plain objects.
func asFilter(v any) (Filter, bool) {
	switch vt := v.(type) {
	case Filter:
		return vt, true
	case map[string]any:
		return Filter(vt), true
	default:
		return nil, false
	}
}

// asList converts any slice or array to []any.
func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is a scalar.
		return nil, false
	}

	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}

	return list, true
}
