package goresource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func Test_tConjunct_toExpression(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		conjunct tConjunct
		wantSQL  string
		wantVars []any
	}{
		{
			name:     "string equality",
			conjunct: tConjunct{Column: "name", Operator: OperatorEq, Value: "abc"},
			wantSQL:  "name = ?",
			wantVars: []any{"abc"},
		},
		{
			name:     "timestamp greater than",
			conjunct: tConjunct{Column: "created_at", Operator: OperatorGt, Value: day},
			wantSQL:  "created_at > ?",
			wantVars: []any{day},
		},
		{
			name:     "not equal",
			conjunct: tConjunct{Column: "id", Operator: OperatorNe, Value: int64(10)},
			wantSQL:  "id <> ?",
			wantVars: []any{int64(10)},
		},
		{
			name:     "null equality",
			conjunct: tConjunct{Column: "deleted_at", Operator: OperatorEq},
			wantSQL:  "deleted_at IS NULL",
		},
		{
			name:     "case insensitive match escapes wildcards",
			conjunct: tConjunct{Column: "name", Operator: OperatorILike, Value: "Jo_%!"},
			wantSQL:  "LOWER(name) LIKE ? ESCAPE '!'",
			wantVars: []any{`%jo!_!%!!%`},
		},
		{
			name:     "in list",
			conjunct: tConjunct{Column: "status", Operator: OperatorIn, Value: []any{"a", "b"}},
			wantSQL:  "status IN ?",
			wantVars: []any{[]any{"a", "b"}},
		},
		{
			name:     "empty in list never matches",
			conjunct: tConjunct{Column: "status", Operator: OperatorIn, Value: []any{}},
			wantSQL:  "1 = 0",
		},
		{
			name:     "empty not in list always matches",
			conjunct: tConjunct{Column: "status", Operator: OperatorNin, Value: []any{}},
			wantSQL:  "1 = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clauseExpr, ok := tt.conjunct.toGORMExpression().(clause.Expr)
			require.True(t, ok)

			if clauseExpr.SQL != tt.wantSQL {
				t.Errorf("unexpected SQL: got %s, want %s", clauseExpr.SQL, tt.wantSQL)
			}
			require.Equal(t, len(tt.wantVars), len(clauseExpr.Vars))
			for i, wantVar := range tt.wantVars {
				require.Equal(t, wantVar, clauseExpr.Vars[i], "var[%d]", i)
			}
		})
	}
}

func Test_Filter_ToSQL(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		columns  ColumnMapping
		wantSQL  string
		wantArgs []any
		wantErr  bool
	}{
		{
			name:    "empty filter",
			filter:  Filter{},
			wantSQL: "TRUE",
		},
		{
			name:     "implicit equality",
			filter:   Filter{"name": "bob"},
			wantSQL:  "name = ?",
			wantArgs: []any{"bob"},
		},
		{
			name:     "keys sorted and joined with AND",
			filter:   Filter{"name": map[string]any{"$eq": "bob"}, "age": map[string]any{"$gt": int64(40), "$lte": int64(60)}},
			wantSQL:  "(age > ? AND age <= ? AND name = ?)",
			wantArgs: []any{int64(40), int64(60), "bob"},
		},
		{
			name: "nested and/or",
			filter: Filter{"$and": []any{
				Filter{"name": "test"},
				Filter{"$or": []any{
					Filter{"age": map[string]any{"$gt": int64(40)}},
					map[string]any{"vip": true},
				}},
			}},
			wantSQL:  "(name = ? AND (age > ? OR vip = ?))",
			wantArgs: []any{"test", int64(40), true},
		},
		{
			name:     "in list expands placeholders",
			filter:   Filter{"id": map[string]any{"$in": []int64{1, 2, 3}}},
			wantSQL:  "id IN (?, ?, ?)",
			wantArgs: []any{int64(1), int64(2), int64(3)},
		},
		{
			name:     "column mapping applied",
			filter:   Filter{"name": "bob"},
			columns:  ColumnMapping{"name": "u.full_name"},
			wantSQL:  "u.full_name = ?",
			wantArgs: []any{"bob"},
		},
		{
			name:    "forbidden column symbols",
			filter:  Filter{"name; DROP TABLE users": "x"},
			wantErr: true,
		},
		{
			name:    "unknown operator",
			filter:  Filter{"name": map[string]any{"$regex": "x"}},
			wantErr: true,
		},
		{
			name:    "unknown logical operator",
			filter:  Filter{"$nor": []any{}},
			wantErr: true,
		},
		{
			name:    "in expects list",
			filter:  Filter{"id": map[string]any{"$in": 5}},
			wantErr: true,
		},
		{
			name:    "and expects list",
			filter:  Filter{"$and": Filter{"a": 1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.filter.ToSQL(tt.columns)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantSQL, sql)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func Test_Filter_Expression(t *testing.T) {
	expr, err := Filter{}.Expression(nil)
	require.NoError(t, err)
	require.Nil(t, expr)

	expr, err = Filter{"a": 1, "b": 2}.Expression(nil)
	require.NoError(t, err)
	_, isAnd := expr.(clause.AndConditions)
	require.True(t, isAnd, "want AndConditions, got %T", expr)

	expr, err = Filter{"$or": []any{Filter{"a": 1}, Filter{"b": 2}}}.Expression(nil)
	require.NoError(t, err)
	_, isOr := expr.(clause.OrConditions)
	require.True(t, isOr, "want OrConditions, got %T", expr)
}

func Test_And_Or(t *testing.T) {
	a := Filter{"a": 1}
	b := Filter{"b": 2}

	require.Equal(t, Filter{}, And())
	require.Equal(t, a, And(a, Filter{}))
	require.Equal(t, Filter{"$and": []any{a, b}}, And(a, b))
	require.Equal(t, Filter{"$or": []any{a, b}}, Or(a, nil, b))
}
