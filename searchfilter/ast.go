// Package searchfilter parses the search-filter query language used by
// resource endpoints into a small AST.
//
// A filter is a list of field terms combined with boolean connectives:
//
//	name:"John Doe" and age:>=21
//	status:[active,pending] , role:admin
//	(city:berlin or city:paris) created:>2024-01-01
//
// Juxtaposition and the keyword "and" bind tighter than "," and "or".
// The package knows nothing about fields or policies; see goresource for
// compilation of the AST into native queries.
package searchfilter

import (
	"fmt"
	"strings"
	"time"
)

// Kind describes how a literal value was written.
type Kind int

const (
	KindWord Kind = iota
	KindString
	KindNumber
	KindDate
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a literal on the right hand side of a term.
type Value struct {
	Kind Kind
	// Text holds the literal as written, without quotes for strings.
	Text string
	// Integer reports whether a number literal fits Int exactly.
	Integer bool
	Int     int64
	Number  float64
	Bool    bool
	Date    time.Time
	List    []Value
}

type (
	Node interface {
		node()
		String() string
	}

	// And is a conjunction of two or more nodes.
	And struct{ Terms []Node }

	// Or is a disjunction of two or more nodes.
	Or struct{ Terms []Node }

	// Term is a single "field:[op]value" comparison. Op is empty when the
	// source did not specify one.
	Term struct {
		Field string
		Op    string
		Value Value
		Pos   int
	}
)

func (And) node()  {}
func (Or) node()   {}
func (Term) node() {}

func (a And) String() string { return joinNodes(a.Terms, " and ") }
func (o Or) String() string  { return joinNodes(o.Terms, " or ") }

func (t Term) String() string {
	return fmt.Sprintf("%s:%s%s", t.Field, t.Op, t.Value)
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return fmt.Sprintf("%q", v.Text)
	case KindList:
		items := make([]string, 0, len(v.List))
		for _, item := range v.List {
			items = append(items, item.String())
		}
		return "[" + strings.Join(items, ",") + "]"
	default:
		return v.Text
	}
}

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		parts = append(parts, n.String())
	}

	return "(" + strings.Join(parts, sep) + ")"
}

// Count returns the number of terms in the tree.
func Count(n Node) int {
	switch nt := n.(type) {
	case Term:
		return 1
	case And:
		return countAll(nt.Terms)
	case Or:
		return countAll(nt.Terms)
	default:
		return 0
	}
}

func countAll(nodes []Node) int {
	total := 0
	for _, n := range nodes {
		total += Count(n)
	}

	return total
}
