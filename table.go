package goresource

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TableConfig describes one table served by a GormModel or an SQLXModel.
type TableConfig struct {
	// Table defaults to the model name.
	Table string
	// IDField is the field records are addressed by. Defaults to "id".
	IDField string
	// IntegerIDs makes string ids match as integers. Non-numeric strings
	// then match nothing.
	IntegerIDs bool
	// IDGenerator fills IDField on Create when the data carries none.
	IDGenerator func() any
	// Columns maps field names, including dotted paths of nested fields,
	// to column names.
	Columns ColumnMapping
}

// NewUUID is an IDGenerator producing v4 uuid strings.
func NewUUID() any {
	return uuid.NewString()
}

func (c TableConfig) withDefaults(name string) TableConfig {
	if c.Table == "" {
		c.Table = name
	}
	if c.IDField == "" {
		c.IDField = "id"
	}

	return c
}

// target narrows filters to the record identified by id. ok is false when
// the id cannot match any record.
func (c TableConfig) target(id Id, filters Filter) (Filter, bool) {
	id, ok := normalizeID(id, c.IntegerIDs)
	if !ok {
		return nil, false
	}

	return And(Filter{c.IDField: id}, filters), true
}

func normalizeID(id Id, integer bool) (Id, bool) {
	if id == nil {
		return nil, false
	}
	if !integer {
		return id, true
	}

	switch v := id.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return id, true
	}
}

// columns flattens data and maps the resulting paths to columns. Dotted
// paths without a mapping are rejected.
func (c TableConfig) columns(data Object) (map[string]any, error) {
	flat := Flatten(data)
	ret := make(map[string]any, len(flat))

	for field, value := range flat {
		column, ok := c.Columns[field]
		if !ok {
			if strings.Contains(field, ".") {
				return nil, fmt.Errorf("no column for nested field '%s'", field)
			}
			column = field
		}
		if !validColumnName(column) {
			return nil, fmt.Errorf("column name contains forbidden symbols '%s'", column)
		}

		ret[column] = value
	}

	return ret, nil
}

func (c TableConfig) idColumn() string {
	if column, ok := c.Columns[c.IDField]; ok {
		return column
	}

	return c.IDField
}

// record converts data into an insertable row, generating the id when
// configured. The returned id is nil when the row carries none.
func (c TableConfig) record(data Object) (map[string]any, Id, error) {
	rec, err := c.columns(data)
	if err != nil {
		return nil, nil, err
	}

	idColumn := c.idColumn()
	if rec[idColumn] == nil && c.IDGenerator != nil {
		rec[idColumn] = c.IDGenerator()
	}

	return rec, rec[idColumn], nil
}

// projection maps the included fields to columns. Nil means all columns.
func (c TableConfig) projection(fields FieldSet) ([]string, error) {
	cols := fields.Columns()
	if len(cols) == 0 {
		return nil, nil
	}

	ret := make([]string, 0, len(cols))
	for _, col := range cols {
		column, err := resolveColumn(col, c.Columns)
		if err != nil {
			return nil, err
		}
		ret = append(ret, column)
	}

	return ret, nil
}

// normalizeRecord turns raw byte columns into strings.
func normalizeRecord(row map[string]any) Object {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}

	return row
}
