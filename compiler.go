package goresource

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Alp4ka/goresource/searchfilter"
)

type (
	// EnabledPolicies is the allow-list of one filter policy: field name to
	// the name of the value policy the field accepts, e.g. {"age": "number"}.
	EnabledPolicies map[string]string

	// PoliciesAvailable holds the named filter policies a route tag may
	// point at.
	PoliciesAvailable map[string]EnabledPolicies

	// FieldsAvailable holds the named field sets a route tag may point at.
	FieldsAvailable map[string]FieldSet
)

// FilterCompiler compiles filter source into a native Filter. It must reject
// any field or operator not allowed by policies.
type FilterCompiler interface {
	Compile(policies EnabledPolicies, src string) (Filter, error)
}

// FilterCompilerFunc adapts a function to FilterCompiler.
type FilterCompilerFunc func(policies EnabledPolicies, src string) (Filter, error)

func (f FilterCompilerFunc) Compile(policies EnabledPolicies, src string) (Filter, error) {
	return f(policies, src)
}

// CompileFilter compiles src with fc. Empty sources fail with ErrEmptyFilter;
// compiler failures are wrapped in *CompileError.
func CompileFilter(fc FilterCompiler, policies EnabledPolicies, src string) (Filter, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmptyFilter
	}

	filter, err := fc.Compile(policies, src)
	if err != nil {
		return nil, &CompileError{Source: src, Err: err}
	}

	return filter, nil
}

// ValuePolicy describes the values and operators a field accepts.
type ValuePolicy struct {
	// Operators lists the allowed operators. For list policies a list
	// literal maps "=" to $in and "!=" to $nin.
	Operators []Operator
	// Default is used when the term carries no comparison symbol.
	Default Operator
	// Convert turns a literal into the native operand.
	Convert func(v searchfilter.Value) (any, error)
	// List marks policies whose operand is always a list.
	List bool
}

const (
	PolicyString  = "string"
	PolicyNumber  = "number"
	PolicyBoolean = "boolean"
	PolicyDate    = "date"
	PolicyMatchCI = "matchci"
	PolicyStrings = "strings"
	PolicyNumbers = "numbers"
)

// DefaultMaxFilters bounds the number of terms in one filter.
const DefaultMaxFilters = 32

var _comparable = []Operator{OperatorEq, OperatorNe, OperatorGt, OperatorGte, OperatorLt, OperatorLte}

// BuiltinPolicies returns the value policies every compiler knows.
func BuiltinPolicies() map[string]ValuePolicy {
	return map[string]ValuePolicy{
		PolicyString:  {Operators: []Operator{OperatorEq, OperatorNe}, Default: OperatorEq, Convert: toText},
		PolicyNumber:  {Operators: _comparable, Default: OperatorEq, Convert: toNumber},
		PolicyBoolean: {Operators: []Operator{OperatorEq, OperatorNe}, Default: OperatorEq, Convert: toBool},
		PolicyDate:    {Operators: _comparable, Default: OperatorEq, Convert: toDate},
		PolicyMatchCI: {Operators: []Operator{OperatorILike, OperatorEq, OperatorNe}, Default: OperatorILike, Convert: toText},
		PolicyStrings: {Operators: []Operator{OperatorIn, OperatorNin}, Default: OperatorIn, Convert: toText, List: true},
		PolicyNumbers: {Operators: []Operator{OperatorIn, OperatorNin}, Default: OperatorIn, Convert: toNumber, List: true},
	}
}

type CompilerOptions struct {
	// Policies adds or overrides value policies by name.
	Policies map[string]ValuePolicy
	// IgnoreUnknownFields drops terms on fields missing from the allow-list
	// instead of rejecting the filter.
	IgnoreUnknownFields bool
	// MaxFilters bounds the number of terms. Zero means DefaultMaxFilters.
	MaxFilters int
}

// DefaultFilterCompiler compiles the search-filter language into Filter
// documents.
type DefaultFilterCompiler struct {
	policies     map[string]ValuePolicy
	ignoreFields bool
	maxFilters   int
}

func NewFilterCompiler(opts CompilerOptions) *DefaultFilterCompiler {
	policies := BuiltinPolicies()
	for name, policy := range opts.Policies {
		policies[name] = policy
	}

	maxFilters := opts.MaxFilters
	if maxFilters <= 0 {
		maxFilters = DefaultMaxFilters
	}

	return &DefaultFilterCompiler{
		policies:     policies,
		ignoreFields: opts.IgnoreUnknownFields,
		maxFilters:   maxFilters,
	}
}

var _ FilterCompiler = (*DefaultFilterCompiler)(nil)

// Compile implements FilterCompiler.
func (c *DefaultFilterCompiler) Compile(policies EnabledPolicies, src string) (Filter, error) {
	node, err := searchfilter.Parse(src)
	if err != nil {
		return nil, err
	}

	if n := searchfilter.Count(node); n > c.maxFilters {
		return nil, fmt.Errorf("too many filter terms: %d, max %d", n, c.maxFilters)
	}

	return c.compileNode(policies, node)
}

func (c *DefaultFilterCompiler) compileNode(policies EnabledPolicies, node searchfilter.Node) (Filter, error) {
	switch n := node.(type) {
	case searchfilter.Term:
		return c.compileTerm(policies, n)
	case searchfilter.And:
		items, err := c.compileAll(policies, n.Terms)
		if err != nil {
			return nil, err
		}
		return And(items...), nil
	case searchfilter.Or:
		items, err := c.compileAll(policies, n.Terms)
		if err != nil {
			return nil, err
		}
		return Or(items...), nil
	default:
		return nil, fmt.Errorf("unexpected node %T", node)
	}
}

func (c *DefaultFilterCompiler) compileAll(policies EnabledPolicies, nodes []searchfilter.Node) ([]Filter, error) {
	ret := make([]Filter, 0, len(nodes))
	for _, n := range nodes {
		f, err := c.compileNode(policies, n)
		if err != nil {
			return nil, err
		}
		ret = append(ret, f)
	}

	return ret, nil
}

func (c *DefaultFilterCompiler) compileTerm(policies EnabledPolicies, term searchfilter.Term) (Filter, error) {
	policyName, ok := policies[term.Field]
	if !ok {
		if c.ignoreFields {
			return Filter{}, nil
		}
		return nil, fmt.Errorf("unknown field '%s', closest: '%s'", term.Field, closestAlias(term.Field, lo.Keys(policies)))
	}

	policy, ok := c.policies[policyName]
	if !ok {
		return nil, fmt.Errorf("field '%s': %w: '%s'", term.Field, ErrPolicyNotFound, policyName)
	}

	operator, err := resolveOperator(policy, term)
	if err != nil {
		return nil, err
	}

	operand, err := convertOperand(policy, operator, term.Value)
	if err != nil {
		return nil, fmt.Errorf("field '%s': %w", term.Field, err)
	}

	return Filter{term.Field: map[string]any{string(operator): operand}}, nil
}

func resolveOperator(policy ValuePolicy, term searchfilter.Term) (Operator, error) {
	operator := policy.Default
	if term.Op != "" {
		mapped, ok := _symbolOperators[term.Op]
		if !ok {
			return "", fmt.Errorf("field '%s': unknown operator '%s'", term.Field, term.Op)
		}
		operator = mapped
	}

	if policy.List {
		switch operator {
		case OperatorEq:
			operator = OperatorIn
		case OperatorNe:
			operator = OperatorNin
		}
	} else if term.Value.Kind == searchfilter.KindList {
		// Lists on scalar fields read as membership tests.
		if !slices.Contains(policy.Operators, operator) {
			return "", fmt.Errorf("field '%s': operator '%s' is not allowed", term.Field, operatorSymbol(term.Op))
		}
		switch operator {
		case OperatorEq:
			return OperatorIn, nil
		case OperatorNe:
			return OperatorNin, nil
		default:
			return "", fmt.Errorf("field '%s': operator '%s' does not accept a list", term.Field, operatorSymbol(term.Op))
		}
	}

	if !slices.Contains(policy.Operators, operator) {
		return "", fmt.Errorf("field '%s': operator '%s' is not allowed", term.Field, operatorSymbol(term.Op))
	}

	return operator, nil
}

func operatorSymbol(op string) string {
	if op == "" {
		return "default"
	}

	return op
}

func convertOperand(policy ValuePolicy, operator Operator, v searchfilter.Value) (any, error) {
	if !operator.IsList() {
		return policy.Convert(v)
	}

	items := []searchfilter.Value{v}
	if v.Kind == searchfilter.KindList {
		items = v.List
	}

	ret := make([]any, 0, len(items))
	for _, item := range items {
		converted, err := policy.Convert(item)
		if err != nil {
			return nil, err
		}
		ret = append(ret, converted)
	}

	return ret, nil
}

var errListValue = errors.New("unexpected list")

func toText(v searchfilter.Value) (any, error) {
	switch v.Kind {
	case searchfilter.KindList:
		return nil, errListValue
	case searchfilter.KindBool:
		return nil, fmt.Errorf("expected text, got %s", v.Kind)
	default:
		return v.Text, nil
	}
}

func toNumber(v searchfilter.Value) (any, error) {
	if v.Kind != searchfilter.KindNumber {
		return nil, fmt.Errorf("expected number, got %s '%s'", v.Kind, v.Text)
	}
	if v.Integer {
		return v.Int, nil
	}

	return v.Number, nil
}

func toBool(v searchfilter.Value) (any, error) {
	if v.Kind != searchfilter.KindBool {
		return nil, fmt.Errorf("expected boolean, got %s '%s'", v.Kind, v.Text)
	}

	return v.Bool, nil
}

func toDate(v searchfilter.Value) (any, error) {
	switch v.Kind {
	case searchfilter.KindDate:
		return v.Date, nil
	case searchfilter.KindString:
		t, err := time.Parse(time.RFC3339, v.Text)
		if err != nil {
			return nil, fmt.Errorf("expected date, got '%s'", v.Text)
		}
		return t.UTC(), nil
	default:
		return nil, fmt.Errorf("expected date, got %s '%s'", v.Kind, v.Text)
	}
}
