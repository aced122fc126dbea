package goresource

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Direction defines the sort direction for the requested dataset.
type Direction string

const (
	DirectionASC  Direction = "ASC"
	DirectionDESC Direction = "DESC"
)

func (o Direction) Valid() bool {
	return o == DirectionASC || o == DirectionDESC
}

type (
	// Orderings is the sort set of a search. A field appears at most once
	// when built through Set.
	Orderings []OrderBy
	OrderBy   struct {
		Column    string
		Direction Direction
	}

	ColumnAlias = string

	// ColumnMapping maps external field names to storage column names.
	// Use it when bare names could cause an "ambiguous column name" error or
	// when a nested field lives in its own column.
	ColumnMapping = map[ColumnAlias]string
)

var _availableColumnNameSymbols = append([]rune("_.'`\""), lo.AlphanumericCharset...)

// validColumnName guards against SQL injection by restricting the characters
// a column name may contain.
func validColumnName(name string) bool {
	return name != "" && lo.Every(_availableColumnNameSymbols, []rune(name))
}

func (o OrderBy) validate() error {
	if !o.Direction.Valid() {
		return fmt.Errorf("invalid ordering direction '%s'", o.Direction)
	}

	if !validColumnName(o.Column) {
		return fmt.Errorf("ordering column name contains forbidden symbols '%s'", o.Column)
	}

	return nil
}

// Get returns the direction of column, if present.
func (o Orderings) Get(column string) (Direction, bool) {
	idx := slices.IndexFunc(o, func(ob OrderBy) bool { return ob.Column == column })
	if idx < 0 {
		return "", false
	}

	return o[idx].Direction, true
}

// Set adds ob, dropping an earlier entry for the same column. The column
// moves to the end so the latest occurrence decides both direction and
// precedence.
func (o Orderings) Set(ob OrderBy) Orderings {
	idx := slices.IndexFunc(o, func(existing OrderBy) bool { return existing.Column == ob.Column })
	if idx >= 0 {
		o = slices.Delete(o, idx, idx+1)
	}

	return append(o, ob)
}

// ToSQLSlice converts Orderings to a slice of strings in the form
// "<order_column> <order_direction>" suitable for SQL query builders.
//
// Example: for Orderings: [{"a", "ASC"}, {"b", "DESC"}] returns ["a ASC", "b DESC"].
func (o Orderings) ToSQLSlice() []string {
	ret := make([]string, 0, len(o))
	for _, ordering := range o {
		ret = append(ret, fmt.Sprintf("%s %s", ordering.Column, ordering.Direction))
	}

	return ret
}

// ToSQL converts Orderings to a single string
// "<order_column_1> <order_direction_1>, <order_column_2> <order_direction_2>".
//
// Usage:
//
//	query := fmt.Sprintf("SELECT * FROM table ORDER BY %s", orderings.ToSQL())
func (o Orderings) ToSQL() string {
	return strings.Join(o.ToSQLSlice(), ", ")
}

// Apply applies the ordering to a gorm query. Empty orderings leave the
// query untouched.
func (o Orderings) Apply(db *gorm.DB) *gorm.DB {
	if len(o) == 0 {
		return db
	}

	return db.Order(o.ToSQL())
}

// mapColumns translates field names through mapping. Unmapped names are
// kept as is.
func (o Orderings) mapColumns(mapping ColumnMapping) Orderings {
	if len(mapping) == 0 {
		return o
	}

	return lo.Map(o, func(ob OrderBy, _ int) OrderBy {
		if column, ok := mapping[ob.Column]; ok {
			ob.Column = column
		}
		return ob
	})
}

func (o Orderings) validate() error {
	var err error
	for _, ordering := range o {
		err = ordering.validate()
		if err != nil {
			return err
		}
	}

	return nil
}

func closestAlias(input ColumnAlias, dataSet []ColumnAlias) ColumnAlias {
	minDist := math.MaxInt
	closest := ""

	// Sorted so ties resolve the same way on every call.
	for _, dataSetAlias := range slices.Sorted(slices.Values(dataSet)) {
		dist := levenshtein([]rune(dataSetAlias), []rune(input))
		if dist < minDist {
			minDist = dist
			closest = dataSetAlias
		}
	}

	return closest
}
