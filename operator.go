package goresource

import "fmt"

// Operator is a comparison operator inside a native Filter document,
// e.g. {"age": {"$gt": 40}}.
type Operator string

const (
	OperatorEq    Operator = "$eq"
	OperatorNe    Operator = "$ne"
	OperatorGt    Operator = "$gt"
	OperatorGte   Operator = "$gte"
	OperatorLt    Operator = "$lt"
	OperatorLte   Operator = "$lte"
	OperatorIn    Operator = "$in"
	OperatorNin   Operator = "$nin"
	OperatorILike Operator = "$ilike"
)

// Logical keys of a Filter document.
const (
	keyAnd = "$and"
	keyOr  = "$or"
)

func (o Operator) Valid() bool {
	_, ok := _operatorSQL[o]
	return ok
}

// IsList reports whether the operator expects a list operand.
func (o Operator) IsList() bool {
	return o == OperatorIn || o == OperatorNin
}

// SQL returns the SQL spelling of the operator.
func (o Operator) SQL() string {
	sql, ok := _operatorSQL[o]
	if !ok {
		panic(fmt.Errorf("cannot map operator '%s' to sql", o))
	}

	return sql
}

var _operatorSQL = map[Operator]string{
	OperatorEq:    "=",
	OperatorNe:    "<>",
	OperatorGt:    ">",
	OperatorGte:   ">=",
	OperatorLt:    "<",
	OperatorLte:   "<=",
	OperatorIn:    "IN",
	OperatorNin:   "NOT IN",
	OperatorILike: "LIKE",
}

// _symbolOperators maps the comparison symbols of the search-filter language
// to operators. The empty symbol is resolved by the field policy.
var _symbolOperators = map[string]Operator{
	"=":  OperatorEq,
	"!=": OperatorNe,
	">":  OperatorGt,
	">=": OperatorGte,
	"<":  OperatorLt,
	"<=": OperatorLte,
	"%":  OperatorILike,
}
