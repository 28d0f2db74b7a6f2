package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/syssam/dbquery/dialect"
)

// Driver is a dialect.Driver implementation for database/sql based backends.
// Each backend package wires it with its driver name, an operational-error
// classifier and an optional statement formatter.
type Driver struct {
	dialect     string
	driverName  string
	dsn         string
	db          *sql.DB // non-nil when the pool is supplied externally
	operational func(error) bool
	formatter   func(query string, args []any) (string, error)
}

// Option configures a Driver.
type Option func(*Driver)

// WithOperational sets the backend-specific classifier for connection-level
// errors. It is consulted after the generic transport-level checks.
func WithOperational(f func(error) bool) Option {
	return func(d *Driver) { d.operational = f }
}

// WithFormatter sets the backend-specific statement formatter used by Format.
func WithFormatter(f func(query string, args []any) (string, error)) Option {
	return func(d *Driver) { d.formatter = f }
}

// NewDriver creates a Driver for the given dialect, database/sql driver name
// and data source name.
func NewDriver(dialectName, driverName, dsn string, opts ...Option) *Driver {
	d := &Driver{dialect: dialectName, driverName: driverName, dsn: dsn}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenDB wraps an existing *sql.DB with a Driver. Connections are drawn from
// the given pool but the pool lifecycle stays with the caller. Intended for
// tests and for callers that manage their own database/sql configuration.
func OpenDB(dialectName string, db *sql.DB, opts ...Option) *Driver {
	d := &Driver{dialect: dialectName, db: db}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dialect implements dialect.Driver.
func (d *Driver) Dialect() string { return d.dialect }

// Connect opens the single physical connection. The underlying pool is pinned
// to one connection so the handle semantics stay "one logical connection".
func (d *Driver) Connect(ctx context.Context) (dialect.Conn, error) {
	db, owned := d.db, false
	if db == nil {
		var err error
		db, err = sql.Open(d.driverName, d.dsn)
		if err != nil {
			return nil, d.classify(err)
		}
		db.SetMaxOpenConns(1)
		owned = true
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		if owned {
			_ = db.Close()
		}
		return nil, d.classify(err)
	}
	return &Conn{drv: d, db: db, conn: conn, owned: owned}, nil
}

// Format implements dialect.Driver. Without a backend formatter it reports
// ErrFormatUnsupported so callers can fall back to an unformatted rendering.
func (d *Driver) Format(query string, args []any) (string, error) {
	if d.formatter == nil {
		return "", dialect.ErrFormatUnsupported
	}
	return d.formatter(query, args)
}

// classify wraps connection-level errors in *dialect.OperationalError and
// passes everything else through unchanged.
func (d *Driver) classify(err error) error {
	if err == nil {
		return nil
	}
	if d.isOperational(err) {
		return &dialect.OperationalError{Dialect: d.dialect, Err: err}
	}
	return err
}

func (d *Driver) isOperational(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if d.operational != nil {
		return d.operational(err)
	}
	return false
}

// execQuerier is the subset of methods shared by *sql.Conn and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.Conn on a dedicated *sql.Conn. While a transaction
// is open, statements are routed through the *sql.Tx instead.
type Conn struct {
	drv   *Driver
	db    *sql.DB
	conn  *sql.Conn
	tx    *sql.Tx
	owned bool
}

func (c *Conn) target() execQuerier {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// Query implements dialect.Conn.
func (c *Conn) Query(ctx context.Context, query string, args []any) (dialect.Cursor, error) {
	rows, err := c.target().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.drv.classify(err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, c.drv.classify(err)
	}
	return &Cursor{drv: c.drv, rows: rows, cols: cols, affected: -1}, nil
}

// Exec implements dialect.Conn.
func (c *Conn) Exec(ctx context.Context, query string, args []any) (dialect.Cursor, error) {
	res, err := c.target().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, c.drv.classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report a count for every statement.
		affected = -1
	}
	return &Cursor{drv: c.drv, affected: affected}, nil
}

// Begin implements dialect.Conn.
func (c *Conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return fmt.Errorf("dialect/sql: transaction already started")
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return c.drv.classify(err)
	}
	c.tx = tx
	return nil
}

// Commit implements dialect.Conn.
func (c *Conn) Commit() error {
	if c.tx == nil {
		return fmt.Errorf("dialect/sql: no transaction to commit")
	}
	err := c.tx.Commit()
	c.tx = nil
	return c.drv.classify(err)
}

// Rollback implements dialect.Conn.
func (c *Conn) Rollback() error {
	if c.tx == nil {
		return fmt.Errorf("dialect/sql: no transaction to roll back")
	}
	err := c.tx.Rollback()
	c.tx = nil
	return c.drv.classify(err)
}

// Close releases the connection and, when the pool was opened by Connect,
// the pool itself. An open transaction is rolled back by the driver.
func (c *Conn) Close() error {
	if c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
	}
	err := c.conn.Close()
	if c.owned {
		err = errors.Join(err, c.db.Close())
	}
	return err
}

// Cursor implements dialect.Cursor over *sql.Rows. Exec results carry only
// the affected-row count; rows is nil for them.
type Cursor struct {
	drv      *Driver
	rows     *sql.Rows
	cols     []string
	affected int64
}

// Columns implements dialect.Cursor.
func (c *Cursor) Columns() []string { return c.cols }

// RowsAffected implements dialect.Cursor.
func (c *Cursor) RowsAffected() int64 { return c.affected }

// Fetch implements dialect.Cursor.
func (c *Cursor) Fetch(n int) ([]dialect.Row, error) {
	if c.rows == nil || n <= 0 {
		return nil, nil
	}
	out := make([]dialect.Row, 0, n)
	for len(out) < n && c.rows.Next() {
		row, err := c.scan()
		if err != nil {
			return nil, c.drv.classify(err)
		}
		out = append(out, row)
	}
	if err := c.rows.Err(); err != nil {
		return nil, c.drv.classify(err)
	}
	return out, nil
}

// FetchAll implements dialect.Cursor.
func (c *Cursor) FetchAll() ([]dialect.Row, error) {
	if c.rows == nil {
		return nil, nil
	}
	var out []dialect.Row
	for c.rows.Next() {
		row, err := c.scan()
		if err != nil {
			return nil, c.drv.classify(err)
		}
		out = append(out, row)
	}
	if err := c.rows.Err(); err != nil {
		return nil, c.drv.classify(err)
	}
	return out, nil
}

func (c *Cursor) scan() (dialect.Row, error) {
	vals := make([]any, len(c.cols))
	ptrs := make([]any, len(c.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

// Close implements dialect.Cursor.
func (c *Cursor) Close() error {
	if c.rows == nil {
		return nil
	}
	return c.rows.Close()
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Conn   = (*Conn)(nil)
	_ dialect.Cursor = (*Cursor)(nil)
)
