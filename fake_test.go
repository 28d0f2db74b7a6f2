package dbquery

import (
	"context"
	"errors"

	"github.com/syssam/dbquery/dialect"
)

// fakeDriver is an in-memory dialect.Driver for exercising the handle's
// state machine and retry protocol without a database.
type fakeDriver struct {
	name       string
	connectErr error
	formatErr  error
	formatted  string

	// counters, accumulated across reconnects
	connects  int
	execs     int
	queries   int
	begins    int
	commits   int
	rollbacks int

	// behavior knobs; execFailures / queryFailures bound how many calls
	// fail with the configured error, -1 means every call
	execErr       error
	execFailures  int
	queryErr      error
	queryFailures int
	beginErr      error
	commitErr     error
	rollbackErr   error
	closeErr      error
	curCloseErr   error

	rows     []dialect.Row
	cols     []string
	affected int64
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{name: "fake"}
}

func (d *fakeDriver) Connect(ctx context.Context) (dialect.Conn, error) {
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	d.connects++
	return &fakeConn{drv: d}, nil
}

func (d *fakeDriver) Dialect() string { return d.name }

func (d *fakeDriver) Format(query string, args []any) (string, error) {
	if d.formatErr != nil {
		return "", d.formatErr
	}
	if d.formatted != "" {
		return d.formatted, nil
	}
	return "", dialect.ErrFormatUnsupported
}

// operational builds the error the fake reports for connection-level
// failures.
func operational(msg string) error {
	return &dialect.OperationalError{Dialect: "fake", Err: errors.New(msg)}
}

type fakeConn struct {
	drv    *fakeDriver
	closed bool
}

func (c *fakeConn) Query(ctx context.Context, query string, args []any) (dialect.Cursor, error) {
	c.drv.queries++
	if c.drv.queryErr != nil && c.drv.queryFailures != 0 {
		if c.drv.queryFailures > 0 {
			c.drv.queryFailures--
		}
		return nil, c.drv.queryErr
	}
	return &fakeCursor{drv: c.drv, rows: c.drv.rows, cols: c.drv.cols, affected: -1}, nil
}

func (c *fakeConn) Exec(ctx context.Context, query string, args []any) (dialect.Cursor, error) {
	c.drv.execs++
	if c.drv.execErr != nil && c.drv.execFailures != 0 {
		if c.drv.execFailures > 0 {
			c.drv.execFailures--
		}
		return nil, c.drv.execErr
	}
	return &fakeCursor{drv: c.drv, affected: c.drv.affected}, nil
}

func (c *fakeConn) Begin(ctx context.Context) error {
	if c.drv.beginErr != nil {
		return c.drv.beginErr
	}
	c.drv.begins++
	return nil
}

func (c *fakeConn) Commit() error {
	if c.drv.commitErr != nil {
		return c.drv.commitErr
	}
	c.drv.commits++
	return nil
}

func (c *fakeConn) Rollback() error {
	if c.drv.rollbackErr != nil {
		return c.drv.rollbackErr
	}
	c.drv.rollbacks++
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return c.drv.closeErr
}

type fakeCursor struct {
	drv      *fakeDriver
	rows     []dialect.Row
	cols     []string
	affected int64
	pos      int
	closed   bool
}

func (c *fakeCursor) Columns() []string { return c.cols }

func (c *fakeCursor) Fetch(n int) ([]dialect.Row, error) {
	if n <= 0 || c.pos >= len(c.rows) {
		return nil, nil
	}
	end := c.pos + n
	if end > len(c.rows) {
		end = len(c.rows)
	}
	out := c.rows[c.pos:end]
	c.pos = end
	return out, nil
}

func (c *fakeCursor) FetchAll() ([]dialect.Row, error) {
	out := c.rows[c.pos:]
	c.pos = len(c.rows)
	return out, nil
}

func (c *fakeCursor) RowsAffected() int64 { return c.affected }

func (c *fakeCursor) Close() error {
	c.closed = true
	return c.drv.curCloseErr
}
