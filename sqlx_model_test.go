package goresource

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLXMock(t *testing.T, driverName string) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return sqlx.NewDb(mockDB, driverName), mock
}

func Test_SQLXModels_GetInstance(t *testing.T) {
	db, _ := newSQLXMock(t, "postgres")

	m, err := SQLXModels{"users": {Returning: true}}.GetInstance(db, "users")
	require.NoError(t, err)
	require.Equal(t, "users", m.(*SQLXModel).conf.Table)
	require.Equal(t, "id", m.(*SQLXModel).conf.IDField)

	_, err = SQLXModels{}.GetInstance(db, "users")
	require.ErrorIs(t, err, ErrModelNotFound)
}

func Test_SQLXModel_Count(t *testing.T) {
	db, mock := newSQLXMock(t, "mysql")
	model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{Table: "users"}})

	mock.ExpectQuery("^SELECT COUNT\\(\\*\\) FROM users WHERE \\(age > \\? AND name = \\?\\)$").
		WithArgs(40, "bob").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("^SELECT COUNT\\(\\*\\) FROM users WHERE TRUE$").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	n, err := model.Count(context.Background(), SearchParams{Filters: Filter{"age": map[string]any{"$gt": 40}, "name": "bob"}})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = model.Count(context.Background(), SearchParams{})
	require.NoError(t, err)
	require.Equal(t, 9, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SQLXModel_Search(t *testing.T) {
	db, mock := newSQLXMock(t, "postgres")
	model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{
		Table:   "users",
		Columns: ColumnMapping{"name": "full_name"},
	}})

	mock.ExpectQuery("^SELECT full_name FROM users WHERE status IN \\(\\$1, \\$2\\) ORDER BY full_name ASC LIMIT 10 OFFSET 20$").
		WithArgs("active", "new").
		WillReturnRows(sqlmock.NewRows([]string{"full_name"}).AddRow([]byte("Ann")).AddRow("Bob"))

	got, err := model.Search(context.Background(), SearchParams{
		Filters: Filter{"status": map[string]any{"$in": []string{"active", "new"}}},
		Offset:  20,
		Limit:   10,
		Sort:    Orderings{{Column: "name", Direction: DirectionASC}},
		Fields:  FieldSet{"name": true},
	})
	require.NoError(t, err)
	require.Equal(t, []Object{{"full_name": "Ann"}, {"full_name": "Bob"}}, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SQLXModel_Create(t *testing.T) {
	t.Run("returning", func(t *testing.T) {
		db, mock := newSQLXMock(t, "postgres")
		model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{Table: "users"}, Returning: true})

		mock.ExpectQuery("^INSERT INTO users \\(age, name\\) VALUES \\(\\$1, \\$2\\) RETURNING id$").
			WithArgs(30, "bob").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))

		id, err := model.Create(context.Background(), Object{"name": "bob", "age": 30})
		require.NoError(t, err)
		require.EqualValues(t, 41, id)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("last insert id", func(t *testing.T) {
		db, mock := newSQLXMock(t, "mysql")
		model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{Table: "users"}})

		mock.ExpectExec("^INSERT INTO users \\(name\\) VALUES \\(\\?\\)$").
			WithArgs("bob").
			WillReturnResult(sqlmock.NewResult(7, 1))

		id, err := model.Create(context.Background(), Object{"name": "bob"})
		require.NoError(t, err)
		require.Equal(t, int64(7), id)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("generated id", func(t *testing.T) {
		db, mock := newSQLXMock(t, "mysql")
		model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{
			Table:       "users",
			IDGenerator: func() any { return "gen-1" },
		}})

		mock.ExpectExec("^INSERT INTO users \\(id, name\\) VALUES \\(\\?, \\?\\)$").
			WithArgs("gen-1", "bob").
			WillReturnResult(sqlmock.NewResult(0, 1))

		id, err := model.Create(context.Background(), Object{"name": "bob"})
		require.NoError(t, err)
		require.Equal(t, "gen-1", id)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func Test_SQLXModel_Update(t *testing.T) {
	db, mock := newSQLXMock(t, "postgres")
	model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{Table: "users", IntegerIDs: true}})

	mock.ExpectExec("^UPDATE users SET name = \\$1 WHERE id = \\$2$").
		WithArgs("bob", int64(24)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := model.Update(context.Background(), "24", Object{"name": "bob"}, UpdateParams{})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = model.Update(context.Background(), "x24", Object{"name": "bob"}, UpdateParams{})
	require.NoError(t, err)
	require.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SQLXModel_Get(t *testing.T) {
	db, mock := newSQLXMock(t, "mysql")
	model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{Table: "users"}})

	mock.ExpectQuery("^SELECT \\* FROM users WHERE id = \\? LIMIT 1$").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("a1", "bob"))
	mock.ExpectQuery("^SELECT \\* FROM users WHERE id = \\? LIMIT 1$").
		WithArgs("a2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	got, ok, err := model.Get(context.Background(), "a1", GetParams{})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Object{"id": "a1", "name": "bob"}, got)

	_, ok, err = model.Get(context.Background(), "a2", GetParams{})
	require.NoError(t, err)
	require.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SQLXModel_Remove(t *testing.T) {
	db, mock := newSQLXMock(t, "mysql")
	model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{Table: "users"}})

	mock.ExpectExec("^DELETE FROM users WHERE \\(id = \\? AND owner = \\?\\)$").
		WithArgs(5, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := model.Remove(context.Background(), 5, RemoveParams{Filters: Filter{"owner": "u1"}})
	require.NoError(t, err)
	require.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_SQLXModel_Rejects(t *testing.T) {
	db, mock := newSQLXMock(t, "mysql")

	model := NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{Table: "users; --"}})
	_, err := model.Count(context.Background(), SearchParams{})
	var se *StorageError
	require.ErrorAs(t, err, &se)

	mock.ExpectExec("^INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

	model = NewSQLXModel(db, SQLXModelConfig{TableConfig: TableConfig{Table: "users"}})
	_, err = model.Create(context.Background(), Object{"name": "x"})
	require.ErrorIs(t, err, ErrCreateNoId)

	assert.NoError(t, mock.ExpectationsWereMet())
}
