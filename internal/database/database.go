package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"
)

const (
	defaultPoolSize    = 32
	defaultBusyTimeout = 5 * time.Second
	defaultCacheKB     = 20000
	defaultSynchronous = "NORMAL"
)

type options struct {
	poolSize    int
	busyTimeout time.Duration
	cacheKB     int
	synchronous string
}

// Option configures a Database at construction time. Tuning is applied once
// and is process-wide for the lifetime of the handle.
type Option func(*options)

// WithPoolSize sets the maximum number of concurrent reader connections.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithBusyTimeout sets how long a connection waits on a locked database
// before failing.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithCacheSize sets the per-connection page cache size in KiB.
func WithCacheSize(kb int) Option {
	return func(o *options) {
		if kb > 0 {
			o.cacheKB = kb
		}
	}
}

// WithSynchronous sets the durability level (OFF, NORMAL, FULL).
func WithSynchronous(level string) Option {
	return func(o *options) {
		if level != "" {
			o.synchronous = level
		}
	}
}

// Database owns the on-disk capture store. Writes go through a single-
// connection pool so only one write transaction commits at a time; reads go
// through a bounded pool and, with WAL journaling, proceed concurrently with
// writes and observe the last fully-committed state.
type Database struct {
	writer *sql.DB
	reader *sql.DB
	closed atomic.Bool
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open opens (or creates) the store at path, applies connection tuning, and
// brings the schema to the current version. Pass ":memory:" for an in-memory
// store (used by tests); in-memory stores share a single connection since
// each SQLite memory connection is otherwise a distinct database.
func Open(path string, opts ...Option) (*Database, error) {
	o := options{
		poolSize:    defaultPoolSize,
		busyTimeout: defaultBusyTimeout,
		cacheKB:     defaultCacheKB,
		synchronous: defaultSynchronous,
	}
	for _, opt := range opts {
		opt(&o)
	}

	writer, err := openPool(path, o, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	reader := writer
	if path != ":memory:" {
		reader, err = openPool(path, o, o.poolSize)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("failed to open reader pool: %w", err)
		}
	}

	if _, err := Migrate(context.Background(), writer); err != nil {
		_ = writer.Close()
		if reader != writer {
			_ = reader.Close()
		}
		return nil, err
	}

	return &Database{writer: writer, reader: reader}, nil
}

// openPool opens one *sql.DB bounded to maxConns connections.
func openPool(path string, o options, maxConns int) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn(path, o))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Close drains in-flight work and releases all connections. Operations after
// Close fail with ErrDatabaseClosed.
func (d *Database) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := d.writer.Close()
	if d.reader != d.writer {
		if rerr := d.reader.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

// read returns the reader pool, or ErrDatabaseClosed after Close.
func (d *Database) read() (*sql.DB, error) {
	if d.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	return d.reader, nil
}

// write returns the writer pool, or ErrDatabaseClosed after Close.
func (d *Database) write() (*sql.DB, error) {
	if d.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	return d.writer, nil
}

// ReadTx runs fn inside a transaction on the reader pool, giving
// multi-query reads one consistent snapshot of the store.
func (d *Database) ReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := d.read()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// WriteTx runs fn inside a write transaction. The transaction is committed
// when fn returns nil and rolled back whole on any error, so multi-statement
// updates (an OCR row plus its index projection, a cascading delete) are
// never partially visible to readers.
func (d *Database) WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := d.write()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
