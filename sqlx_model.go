package goresource

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

// SQLXModelConfig describes one table served by an SQLXModel.
type SQLXModelConfig struct {
	TableConfig
	// Returning reads the id of inserted rows back with RETURNING instead
	// of LastInsertId. Needed for auto generated ids on postgres.
	Returning bool
}

// SQLXModels is a ModelProvider over sqlx handles keyed by model name.
type SQLXModels map[string]SQLXModelConfig

var _ ModelProvider[*sqlx.DB] = SQLXModels(nil)

func (m SQLXModels) GetInstance(db *sqlx.DB, name string) (Model, error) {
	conf, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrModelNotFound, name)
	}
	conf.TableConfig = conf.TableConfig.withDefaults(name)

	return NewSQLXModel(db, conf), nil
}

// SQLXModel is a Model over one table built on plain SQL. Statements are
// written with "?" and rebound to the placeholders of the driver.
type SQLXModel struct {
	db   *sqlx.DB
	conf SQLXModelConfig
}

var _ Model = (*SQLXModel)(nil)

func NewSQLXModel(db *sqlx.DB, conf SQLXModelConfig) *SQLXModel {
	conf.TableConfig = conf.TableConfig.withDefaults(conf.Table)

	return &SQLXModel{db: db, conf: conf}
}

func (m *SQLXModel) tableName() (string, error) {
	if !validColumnName(m.conf.Table) {
		return "", fmt.Errorf("table name contains forbidden symbols '%s'", m.conf.Table)
	}

	return m.conf.Table, nil
}

// selectSQL builds "SELECT cols FROM table WHERE cond [ORDER BY] [LIMIT] [OFFSET]".
func (m *SQLXModel) selectSQL(params SearchParams) (string, []any, error) {
	table, err := m.tableName()
	if err != nil {
		return "", nil, err
	}

	cond, args, err := params.Filters.ToSQL(m.conf.Columns)
	if err != nil {
		return "", nil, err
	}

	cols, err := m.conf.projection(params.Fields)
	if err != nil {
		return "", nil, err
	}
	selected := "*"
	if len(cols) > 0 {
		selected = strings.Join(cols, ", ")
	}

	sort := params.Sort.mapColumns(m.conf.Columns)
	if err = sort.validate(); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s", selected, table, cond)
	if len(sort) > 0 {
		fmt.Fprintf(&sb, " ORDER BY %s", sort.ToSQL())
	}
	if params.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", params.Limit)
	}
	if params.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", params.Offset)
	}

	return sb.String(), args, nil
}

func (m *SQLXModel) query(ctx context.Context, op string, q string, args []any) ([]Object, error) {
	rows, err := m.db.QueryxContext(ctx, m.db.Rebind(q), args...)
	if err != nil {
		return nil, storageError(op, err)
	}
	defer rows.Close()

	ret := make([]Object, 0)
	for rows.Next() {
		row := make(map[string]any)
		if err = rows.MapScan(row); err != nil {
			return nil, storageError(op, err)
		}
		ret = append(ret, normalizeRecord(row))
	}

	if err = rows.Err(); err != nil {
		return nil, storageError(op, err)
	}

	return ret, nil
}

func (m *SQLXModel) Create(ctx context.Context, data Object) (Id, error) {
	table, err := m.tableName()
	if err != nil {
		return nil, storageError("create", err)
	}

	rec, id, err := m.conf.record(data)
	if err != nil {
		return nil, storageError("create", err)
	}
	if len(rec) == 0 {
		return nil, storageError("create", ErrPayloadInvalid)
	}

	cols := lo.Keys(rec)
	slices.Sort(cols)
	args := lo.Map(cols, func(col string, _ int) any { return rec[col] })
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)

	if id == nil && m.conf.Returning {
		q += " RETURNING " + m.conf.idColumn()
		if err = m.db.QueryRowxContext(ctx, m.db.Rebind(q), args...).Scan(&id); err != nil {
			return nil, storageError("create", err)
		}
		if b, ok := id.([]byte); ok {
			id = string(b)
		}
		return id, nil
	}

	res, err := m.db.ExecContext(ctx, m.db.Rebind(q), args...)
	if err != nil {
		return nil, storageError("create", err)
	}
	if id != nil {
		return id, nil
	}

	lastID, err := res.LastInsertId()
	if err != nil || lastID <= 0 {
		return nil, storageError("create", ErrCreateNoId)
	}

	return lastID, nil
}

func (m *SQLXModel) Count(ctx context.Context, params SearchParams) (int, error) {
	params = params.Normalize()

	table, err := m.tableName()
	if err != nil {
		return 0, storageError("count", err)
	}

	cond, args, err := params.Filters.ToSQL(m.conf.Columns)
	if err != nil {
		return 0, storageError("count", err)
	}

	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, cond)
	if err = m.db.GetContext(ctx, &n, m.db.Rebind(q), args...); err != nil {
		return 0, storageError("count", err)
	}

	return n, nil
}

func (m *SQLXModel) Search(ctx context.Context, params SearchParams) ([]Object, error) {
	q, args, err := m.selectSQL(params.Normalize())
	if err != nil {
		return nil, storageError("search", err)
	}

	return m.query(ctx, "search", q, args)
}

func (m *SQLXModel) Update(ctx context.Context, id Id, changes Object, params UpdateParams) (bool, error) {
	filters, ok := m.conf.target(id, params.Filters)
	if !ok {
		return false, nil
	}

	values, err := m.conf.columns(changes)
	if err != nil {
		return false, storageError("update", err)
	}
	if len(values) == 0 {
		return false, nil
	}

	table, err := m.tableName()
	if err != nil {
		return false, storageError("update", err)
	}

	cond, condArgs, err := filters.ToSQL(m.conf.Columns)
	if err != nil {
		return false, storageError("update", err)
	}

	cols := lo.Keys(values)
	slices.Sort(cols)
	sets := lo.Map(cols, func(col string, _ int) string { return col + " = ?" })
	args := append(lo.Map(cols, func(col string, _ int) any { return values[col] }), condArgs...)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), cond)

	return m.exec(ctx, "update", q, args)
}

func (m *SQLXModel) Get(ctx context.Context, id Id, params GetParams) (Object, bool, error) {
	filters, ok := m.conf.target(id, params.Filters)
	if !ok {
		return nil, false, nil
	}

	q, args, err := m.selectSQL(SearchParams{Filters: filters, Limit: 1, Fields: params.Fields})
	if err != nil {
		return nil, false, storageError("get", err)
	}

	rows, err := m.query(ctx, "get", q, args)
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}

	return rows[0], true, nil
}

func (m *SQLXModel) Remove(ctx context.Context, id Id, params RemoveParams) (bool, error) {
	filters, ok := m.conf.target(id, params.Filters)
	if !ok {
		return false, nil
	}

	table, err := m.tableName()
	if err != nil {
		return false, storageError("remove", err)
	}

	cond, args, err := filters.ToSQL(m.conf.Columns)
	if err != nil {
		return false, storageError("remove", err)
	}

	return m.exec(ctx, "remove", fmt.Sprintf("DELETE FROM %s WHERE %s", table, cond), args)
}

func (m *SQLXModel) exec(ctx context.Context, op string, q string, args []any) (bool, error) {
	res, err := m.db.ExecContext(ctx, m.db.Rebind(q), args...)
	if err != nil {
		return false, storageError(op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError(op, err)
	}

	return n > 0, nil
}
