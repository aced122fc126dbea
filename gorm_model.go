package goresource

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GormModels is a ModelProvider over gorm handles keyed by model name.
type GormModels map[string]TableConfig

var _ ModelProvider[*gorm.DB] = GormModels(nil)

func (m GormModels) GetInstance(db *gorm.DB, name string) (Model, error) {
	conf, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrModelNotFound, name)
	}

	return NewGormModel(db, conf.withDefaults(name)), nil
}

// GormModel is a Model over one table, working on plain maps.
type GormModel struct {
	db   *gorm.DB
	conf TableConfig
}

var _ Model = (*GormModel)(nil)

func NewGormModel(db *gorm.DB, conf TableConfig) *GormModel {
	return &GormModel{db: db, conf: conf.withDefaults(conf.Table)}
}

func (m *GormModel) table(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx).Table(m.conf.Table)
}

func (m *GormModel) where(tx *gorm.DB, filters Filter) (*gorm.DB, error) {
	expr, err := filters.Expression(m.conf.Columns)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return tx, nil
	}

	return tx.Where(expr), nil
}

// shape applies the ordering and the projection.
func (m *GormModel) shape(tx *gorm.DB, sort Orderings, fields FieldSet) (*gorm.DB, error) {
	sort = sort.mapColumns(m.conf.Columns)
	if err := sort.validate(); err != nil {
		return nil, err
	}
	tx = sort.Apply(tx)

	cols, err := m.conf.projection(fields)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		tx = tx.Select(cols)
	}

	return tx, nil
}

func (m *GormModel) Create(ctx context.Context, data Object) (Id, error) {
	rec, id, err := m.conf.record(data)
	if err != nil {
		return nil, storageError("create", err)
	}
	if id == nil {
		return nil, storageError("create", ErrCreateNoId)
	}

	if err = m.table(ctx).Create(rec).Error; err != nil {
		return nil, storageError("create", err)
	}

	return id, nil
}

// CreateMany inserts records in one statement and returns their ids.
func (m *GormModel) CreateMany(ctx context.Context, data []Object) ([]Id, error) {
	if len(data) == 0 {
		return []Id{}, nil
	}

	recs := make([]map[string]any, 0, len(data))
	ids := make([]Id, 0, len(data))

	for _, d := range data {
		rec, id, err := m.conf.record(d)
		if err != nil {
			return nil, storageError("create many", err)
		}
		if id == nil {
			return nil, storageError("create many", ErrCreateNoId)
		}

		recs = append(recs, rec)
		ids = append(ids, id)
	}

	if err := m.table(ctx).Create(recs).Error; err != nil {
		return nil, storageError("create many", err)
	}

	return ids, nil
}

func (m *GormModel) Count(ctx context.Context, params SearchParams) (int, error) {
	params = params.Normalize()

	tx, err := m.where(m.table(ctx), params.Filters)
	if err != nil {
		return 0, storageError("count", err)
	}

	var n int64
	if err = tx.Count(&n).Error; err != nil {
		return 0, storageError("count", err)
	}

	return int(n), nil
}

func (m *GormModel) Search(ctx context.Context, params SearchParams) ([]Object, error) {
	params = params.Normalize()

	tx, err := m.where(m.table(ctx), params.Filters)
	if err != nil {
		return nil, storageError("search", err)
	}

	tx, err = m.shape(tx, params.Sort, params.Fields)
	if err != nil {
		return nil, storageError("search", err)
	}
	if params.Offset > 0 {
		tx = tx.Offset(params.Offset)
	}
	if params.Limit > 0 {
		tx = tx.Limit(params.Limit)
	}

	var rows []map[string]any
	if err = tx.Find(&rows).Error; err != nil {
		return nil, storageError("search", err)
	}

	return lo.Map(rows, func(row map[string]any, _ int) Object {
		return normalizeRecord(row)
	}), nil
}

func (m *GormModel) Update(ctx context.Context, id Id, changes Object, params UpdateParams) (bool, error) {
	filters, ok := m.conf.target(id, params.Filters)
	if !ok {
		return false, nil
	}

	n, err := m.update(ctx, "update", changes, filters)

	return n > 0, err
}

// UpdateMany applies changes to every record matching filters and returns
// the number of records changed. An empty filter is rejected.
func (m *GormModel) UpdateMany(ctx context.Context, changes Object, filters Filter) (int, error) {
	if filters.IsEmpty() {
		return 0, storageError("update many", ErrEmptyFilter)
	}

	return m.update(ctx, "update many", changes, filters)
}

func (m *GormModel) update(ctx context.Context, op string, changes Object, filters Filter) (int, error) {
	values, err := m.conf.columns(changes)
	if err != nil {
		return 0, storageError(op, err)
	}
	if len(values) == 0 {
		return 0, nil
	}

	tx, err := m.where(m.table(ctx), filters)
	if err != nil {
		return 0, storageError(op, err)
	}

	tx = tx.Updates(values)
	if tx.Error != nil {
		return 0, storageError(op, tx.Error)
	}

	return int(tx.RowsAffected), nil
}

func (m *GormModel) Get(ctx context.Context, id Id, params GetParams) (Object, bool, error) {
	filters, ok := m.conf.target(id, params.Filters)
	if !ok {
		return nil, false, nil
	}

	tx, err := m.where(m.table(ctx), filters)
	if err != nil {
		return nil, false, storageError("get", err)
	}

	tx, err = m.shape(tx, nil, params.Fields)
	if err != nil {
		return nil, false, storageError("get", err)
	}

	var rows []map[string]any
	if err = tx.Limit(1).Find(&rows).Error; err != nil {
		return nil, false, storageError("get", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	return normalizeRecord(rows[0]), true, nil
}

func (m *GormModel) Remove(ctx context.Context, id Id, params RemoveParams) (bool, error) {
	filters, ok := m.conf.target(id, params.Filters)
	if !ok {
		return false, nil
	}

	n, err := m.remove(ctx, "remove", filters)

	return n > 0, err
}

// RemoveMany deletes every record matching filters and returns the number
// removed. An empty filter is rejected.
func (m *GormModel) RemoveMany(ctx context.Context, filters Filter) (int, error) {
	if filters.IsEmpty() {
		return 0, storageError("remove many", ErrEmptyFilter)
	}

	return m.remove(ctx, "remove many", filters)
}

func (m *GormModel) remove(ctx context.Context, op string, filters Filter) (int, error) {
	tx, err := m.where(m.table(ctx), filters)
	if err != nil {
		return 0, storageError(op, err)
	}

	tx = tx.Delete(map[string]any{})
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrMissingWhereClause) {
			return 0, storageError(op, ErrEmptyFilter)
		}
		return 0, storageError(op, tx.Error)
	}

	return int(tx.RowsAffected), nil
}
