package goresource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connection is a named handle to a data store. Open is called once before
// the first Checkout.
type Connection[C any] interface {
	Open(ctx context.Context) error
	Checkout(ctx context.Context) (C, error)
	Close() error
}

// Connections resolves a connection handle by name.
type Connections[C any] interface {
	Checkout(ctx context.Context, name string) (C, error)
}

// Pool is the process-wide registry of connections. It is safe for
// concurrent use.
type Pool[C any] struct {
	mu    sync.RWMutex
	conns map[string]Connection[C]
}

var _ Connections[*gorm.DB] = (*Pool[*gorm.DB])(nil)

func NewPool[C any]() *Pool[C] {
	return &Pool[C]{conns: map[string]Connection[C]{}}
}

// Add registers conn under name, replacing a previous registration.
func (p *Pool[C]) Add(name string, conn Connection[C]) *Pool[C] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conns[name] = conn

	return p
}

// Open opens every registered connection in name order and stops at the
// first failure.
func (p *Pool[C]) Open(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := lo.Keys(p.conns)
	slices.Sort(names)

	for _, name := range names {
		if err := p.conns[name].Open(ctx); err != nil {
			return fmt.Errorf("open connection %q: %w", name, err)
		}
	}

	return nil
}

// Checkout returns the handle of the named connection.
func (p *Pool[C]) Checkout(ctx context.Context, name string) (C, error) {
	p.mu.RLock()
	conn, ok := p.conns[name]
	p.mu.RUnlock()

	if !ok {
		var zero C
		return zero, &UnknownConnectionError{Name: name}
	}

	return conn.Checkout(ctx)
}

// Close closes and forgets every connection.
func (p *Pool[C]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for name, conn := range p.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection %q: %w", name, err))
		}
	}
	p.conns = map[string]Connection[C]{}

	return errors.Join(errs...)
}

// PoolConfig tunes the database/sql pool behind a connection. Zero values
// keep the driver defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// PingTimeout bounds the availability check on Open. Defaults to 3s.
	PingTimeout time.Duration
}

func (c PoolConfig) apply(db *sql.DB) {
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}
}

func (c PoolConfig) ping(ctx context.Context, db *sql.DB) error {
	timeout := c.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return db.PingContext(ctx)
}

var errNotOpen = errors.New("connection not open")

// GormConnection opens a gorm handle for a dialector.
type GormConnection struct {
	Dialector gorm.Dialector
	Config    *gorm.Config
	Pool      PoolConfig

	mu sync.RWMutex
	db *gorm.DB
}

var _ Connection[*gorm.DB] = (*GormConnection)(nil)

// OpenMySQL returns an unopened mysql connection for dsn.
func OpenMySQL(dsn string, conf *gorm.Config) *GormConnection {
	return &GormConnection{Dialector: mysql.Open(dsn), Config: conf}
}

// OpenPostgres returns an unopened postgres connection for dsn.
func OpenPostgres(dsn string, conf *gorm.Config) *GormConnection {
	return &GormConnection{Dialector: postgres.Open(dsn), Config: conf}
}

// FromGorm wraps an already opened handle.
func FromGorm(db *gorm.DB) *GormConnection {
	return &GormConnection{db: db}
}

func (c *GormConnection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	conf := c.Config
	if conf == nil {
		conf = &gorm.Config{}
	}

	db, err := gorm.Open(c.Dialector, conf)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	c.Pool.apply(sqlDB)

	if err = c.Pool.ping(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return err
	}

	c.db = db

	return nil
}

func (c *GormConnection) Checkout(ctx context.Context) (*gorm.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.db == nil {
		return nil, errNotOpen
	}

	return c.db.WithContext(ctx), nil
}

func (c *GormConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}

	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.db = nil

	return sqlDB.Close()
}

// SQLXConnection opens a sqlx handle. The driver must be registered by the
// caller, e.g. with a blank import of github.com/lib/pq.
type SQLXConnection struct {
	Driver string
	DSN    string
	Pool   PoolConfig

	mu sync.RWMutex
	db *sqlx.DB
}

var _ Connection[*sqlx.DB] = (*SQLXConnection)(nil)

// FromSQLX wraps an already opened handle.
func FromSQLX(db *sqlx.DB) *SQLXConnection {
	return &SQLXConnection{Driver: db.DriverName(), db: db}
}

func (c *SQLXConnection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	db, err := sqlx.Open(c.Driver, c.DSN)
	if err != nil {
		return err
	}
	c.Pool.apply(db.DB)

	if err = c.Pool.ping(ctx, db.DB); err != nil {
		_ = db.Close()
		return err
	}

	c.db = db

	return nil
}

func (c *SQLXConnection) Checkout(context.Context) (*sqlx.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.db == nil {
		return nil, errNotOpen
	}

	return c.db, nil
}

func (c *SQLXConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	c.db = nil

	return err
}
