package goresource

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type (
	tExpr interface {
		toGORMExpression() clause.Expression
		toSQLClause() (string, []any)
	}

	// tConjunct is a single Operator(Column, Value) condition.
	tConjunct struct {
		Column   string
		Operator Operator
		Value    any
	}

	// tJunction joins its items with AND, or with OR when or is set.
	tJunction struct {
		or    bool
		items []tExpr
	}
)

// Expression compiles the filter into a gorm clause expression, translating
// field names through columns. An empty filter yields nil.
func (f Filter) Expression(columns ColumnMapping) (clause.Expression, error) {
	expr, err := buildExpr(f, columns)
	if err != nil || expr == nil {
		return nil, err
	}

	return expr.toGORMExpression(), nil
}

// ToSQL compiles the filter into an SQL condition with "?" placeholders and
// the matching arguments. An empty filter yields "TRUE".
//
// Example:
//
//	Filter{"age": {"$gt": 40}, "name": "bob"} -> ("(age > ? AND name = ?)", [40, "bob"])
func (f Filter) ToSQL(columns ColumnMapping) (string, []any, error) {
	expr, err := buildExpr(f, columns)
	if err != nil {
		return "", nil, err
	}
	if expr == nil {
		return "TRUE", nil, nil
	}

	sql, args := expr.toSQLClause()

	return sql, args, nil
}

func buildExpr(f Filter, columns ColumnMapping) (tExpr, error) {
	keys := lo.Keys(f)
	slices.Sort(keys)

	items := make([]tExpr, 0, len(keys))
	for _, key := range keys {
		value := f[key]

		switch {
		case key == keyAnd || key == keyOr:
			expr, err := buildJunction(key == keyOr, value, columns)
			if err != nil {
				return nil, err
			}
			if expr != nil {
				items = append(items, expr)
			}
		case strings.HasPrefix(key, "$"):
			return nil, fmt.Errorf("unsupported logical operator '%s'", key)
		default:
			conjuncts, err := buildField(key, value, columns)
			if err != nil {
				return nil, err
			}
			items = append(items, conjuncts...)
		}
	}

	return joinExprs(false, items), nil
}

func buildJunction(or bool, value any, columns ColumnMapping) (tExpr, error) {
	list, ok := asList(value)
	if !ok {
		return nil, fmt.Errorf("logical operator expects a list, got %T", value)
	}

	items := make([]tExpr, 0, len(list))
	for _, item := range list {
		sub, ok := asFilter(item)
		if !ok {
			return nil, fmt.Errorf("logical operator expects filters, got %T", item)
		}

		expr, err := buildExpr(sub, columns)
		if err != nil {
			return nil, err
		}
		if expr != nil {
			items = append(items, expr)
		}
	}

	return joinExprs(or, items), nil
}

func joinExprs(or bool, items []tExpr) tExpr {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return items[0]
	default:
		return tJunction{or: or, items: items}
	}
}

func buildField(field string, value any, columns ColumnMapping) ([]tExpr, error) {
	column, err := resolveColumn(field, columns)
	if err != nil {
		return nil, err
	}

	doc, ok := asFilter(value)
	if !ok {
		return []tExpr{tConjunct{Column: column, Operator: OperatorEq, Value: value}}, nil
	}

	ops := lo.Keys(doc)
	slices.Sort(ops)

	ret := make([]tExpr, 0, len(ops))
	for _, op := range ops {
		operator := Operator(op)
		if !operator.Valid() {
			return nil, fmt.Errorf("unsupported operator '%s' on field '%s'", op, field)
		}

		operand := doc[op]
		if operator.IsList() {
			list, ok := asList(operand)
			if !ok {
				return nil, fmt.Errorf("operator '%s' on field '%s' expects a list", op, field)
			}
			operand = list
		}

		ret = append(ret, tConjunct{Column: column, Operator: operator, Value: operand})
	}

	return ret, nil
}

func resolveColumn(field string, columns ColumnMapping) (string, error) {
	column := field
	if mapped, ok := columns[field]; ok {
		column = mapped
	}

	if !validColumnName(column) {
		return "", fmt.Errorf("column name contains forbidden symbols '%s'", column)
	}

	return column, nil
}

// toGORMExpression converts a conjunct into a clause.Expr using the "?"
// placeholder.
func (c tConjunct) toGORMExpression() clause.Expression {
	if c.Operator.IsList() {
		list, _ := c.Value.([]any)
		if len(list) == 0 {
			return clause.Expr{SQL: c.emptyListSQL()}
		}

		return clause.Expr{
			SQL:  fmt.Sprintf("%s %s ?", c.Column, c.Operator.SQL()),
			Vars: []any{list},
		}
	}

	sql, args := c.toSQLClause()

	return clause.Expr{SQL: sql, Vars: args}
}

// toSQLClause converts a conjunct into "Column Operator ?" and its
// arguments. List operators expand to one placeholder per element.
func (c tConjunct) toSQLClause() (string, []any) {
	switch {
	case c.Value == nil && c.Operator == OperatorEq:
		return fmt.Sprintf("%s IS NULL", c.Column), nil
	case c.Value == nil && c.Operator == OperatorNe:
		return fmt.Sprintf("%s IS NOT NULL", c.Column), nil
	case c.Operator == OperatorILike:
		return fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '!'", c.Column), []any{likePattern(c.Value)}
	case c.Operator.IsList():
		list, _ := c.Value.([]any)
		if len(list) == 0 {
			return c.emptyListSQL(), nil
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")
		return fmt.Sprintf("%s %s (%s)", c.Column, c.Operator.SQL(), placeholders), list
	default:
		return fmt.Sprintf("%s %s ?", c.Column, c.Operator.SQL()), []any{c.Value}
	}
}

// emptyListSQL: nothing is IN an empty list, everything is NOT IN it.
func (c tConjunct) emptyListSQL() string {
	if c.Operator == OperatorNin {
		return "1 = 1"
	}

	return "1 = 0"
}

// _likeEscaper escapes wildcards with '!'. sqlite has no default LIKE
// escape character and mysql treats backslashes in literals specially.
var _likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// likePattern builds a case-insensitive "contains" pattern for
// LOWER(col) LIKE ? ESCAPE '!'.
func likePattern(v any) string {
	return "%" + _likeEscaper.Replace(strings.ToLower(fmt.Sprint(v))) + "%"
}

func (j tJunction) toGORMExpression() clause.Expression {
	exprs := lo.Map(j.items, func(item tExpr, _ int) clause.Expression {
		return item.toGORMExpression()
	})

	if j.or {
		return clause.Or(exprs...)
	}

	return clause.And(exprs...)
}

// toSQLClause joins the items into "(K1 AND K2 ...)" or "(K1 OR K2 ...)".
func (j tJunction) toSQLClause() (string, []any) {
	clauses := make([]string, 0, len(j.items))
	values := make([]any, 0, len(j.items))

	for _, item := range j.items {
		sql, args := item.toSQLClause()
		clauses = append(clauses, sql)
		values = append(values, args...)
	}

	sep := " AND "
	if j.or {
		sep = " OR "
	}

	return fmt.Sprintf("(%s)", strings.Join(clauses, sep)), values
}
