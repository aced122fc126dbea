package goresource

import (
	"context"
	"sync"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Writes skip the default transaction so mocks need no BEGIN/COMMIT.
var _testGORMConfig = &gorm.Config{SkipDefaultTransaction: true}

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, _testGORMConfig)
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, _testGORMConfig)
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

var _sqlMockFnList = []func() (string, *gorm.DB, sqlmock.Sqlmock, error){
	newGORMMySQLMock,
	newGORMPostgresMock,
}

// tStubModel is a Model that records calls. Search serves generated records
// {"id": n} for n in (offset, offset+limit], bounded by total.
type tStubModel struct {
	mu sync.Mutex

	total     int
	countErr  error
	searchErr error

	createID  Id
	createErr error
	updateOK  bool
	getRecord Object
	removeOK  bool

	calls       map[string]int
	lastCount   SearchParams
	lastSearch  SearchParams
	lastCreate  Object
	lastUpdate  Object
	lastFilters Filter
	lastFields  FieldSet
	lastID      Id
}

var _ Model = (*tStubModel)(nil)

func (m *tStubModel) record(op string) {
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[op]++
}

func (m *tStubModel) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[op]
}

func (m *tStubModel) Create(_ context.Context, data Object) (Id, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create")
	m.lastCreate = data

	return m.createID, m.createErr
}

func (m *tStubModel) Count(_ context.Context, params SearchParams) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("count")
	m.lastCount = params

	return m.total, m.countErr
}

func (m *tStubModel) Search(_ context.Context, params SearchParams) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("search")
	m.lastSearch = params

	if m.searchErr != nil {
		return nil, m.searchErr
	}

	end := m.total
	if params.Limit > 0 {
		end = min(end, params.Offset+params.Limit)
	}

	ret := make([]Object, 0)
	for i := params.Offset; i < end; i++ {
		ret = append(ret, Object{"id": i + 1})
	}

	return ret, nil
}

func (m *tStubModel) Update(_ context.Context, id Id, changes Object, params UpdateParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update")
	m.lastID, m.lastUpdate, m.lastFilters = id, changes, params.Filters

	return m.updateOK, nil
}

func (m *tStubModel) Get(_ context.Context, id Id, params GetParams) (Object, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("get")
	m.lastID, m.lastFilters, m.lastFields = id, params.Filters, params.Fields

	return m.getRecord, m.getRecord != nil, nil
}

func (m *tStubModel) Remove(_ context.Context, id Id, params RemoveParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("remove")
	m.lastID, m.lastFilters = id, params.Filters

	return m.removeOK, nil
}
