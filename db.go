package dbquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/syssam/dbquery/dialect"
)

// DB owns one physical backend connection together with its retry budget and
// transaction bookkeeping. It is the handle all Query variants execute
// through.
//
// A DB is not safe for concurrent use; callers that need concurrency open
// one handle per goroutine.
type DB struct {
	drv dialect.Driver
	log *slog.Logger
	id  string

	conn dialect.Conn

	retry      int // reconnect attempts per call; forced to 0 inside a transaction
	savedRetry int // retry value saved for the duration of a transaction, -1 when idle
	depth      int // nested transaction scope count
}

// DBOption configures a DB handle.
type DBOption func(*DB)

// WithRetry sets how many attempts a call makes before giving up. Values of
// 0 or 1 both mean a single attempt.
func WithRetry(n int) DBOption {
	return func(d *DB) { d.retry = n }
}

// WithLogger sets the logger used for transaction boundary and retry events.
func WithLogger(l *slog.Logger) DBOption {
	return func(d *DB) { d.log = l }
}

// New creates a handle on the given backend driver. The connection is opened
// lazily on the first execution.
func New(drv dialect.Driver, opts ...DBOption) *DB {
	d := &DB{
		drv:        drv,
		log:        slog.Default(),
		id:         uuid.NewString()[:8],
		savedRetry: -1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open resolves the backend named in cfg through the dialect registry and
// returns a handle on it. The backend package must be linked in, usually
// with a blank import.
func Open(cfg Config, opts ...DBOption) (*DB, error) {
	drv, err := dialect.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, err
	}
	opts = append([]DBOption{WithRetry(cfg.Retry)}, opts...)
	return New(drv, opts...), nil
}

// Dialect returns the backend dialect name.
func (d *DB) Dialect() string { return d.drv.Dialect() }

// Retry returns the live retry budget. Inside a transaction it is 0.
func (d *DB) Retry() int { return d.retry }

// String identifies the handle in log events.
func (d *DB) String() string {
	return fmt.Sprintf("%s(%s)", d.drv.Dialect(), d.id)
}

// Connect opens the physical connection. Calling it while connected is a
// programming error. Most callers never use it directly; execution connects
// lazily.
func (d *DB) Connect(ctx context.Context) error {
	if d.conn != nil {
		return &ConnectionStateError{State: "already connected, close first"}
	}
	conn, err := d.drv.Connect(ctx)
	if err != nil {
		return err
	}
	d.conn = conn
	return nil
}

// Close releases the connection if present. Close-time errors are logged and
// swallowed; the handle always ends up disconnected, so a later execution
// reconnects. Idempotent.
func (d *DB) Close() {
	if d.conn == nil {
		return
	}
	if err := d.conn.Close(); err != nil {
		d.log.Warn("could not close connection", "db", d.String(), "error", err)
	}
	d.conn = nil
}

// Show renders the statement with parameters substituted, for diagnostics.
// Backends without formatting support fall back to "sql + params" text.
func (d *DB) Show(query string, params Params) (string, error) {
	args := params.resolve()
	s, err := d.drv.Format(query, args)
	if errors.Is(err, dialect.ErrFormatUnsupported) {
		return fmt.Sprintf("%s %v", query, args), nil
	}
	return s, err
}

// execKind selects how a statement is dispatched to the backend.
type execKind int

const (
	execAffected execKind = iota // Exec path, affected-row count only
	execRows                     // Query path, result set expected
)

// execute ensures a live connection, dispatches the statement and hands the
// cursor to the shaper. The cursor is always released before returning;
// close failures are logged, never raised.
func (d *DB) execute(ctx context.Context, query string, params Params, kind execKind, shape func(dialect.Cursor) (any, error)) (any, error) {
	if d.conn == nil {
		if err := d.Connect(ctx); err != nil {
			return nil, err
		}
	}
	args := params.resolve()
	var (
		cur dialect.Cursor
		err error
	)
	if kind == execRows {
		cur, err = d.conn.Query(ctx, query, args)
	} else {
		cur, err = d.conn.Exec(ctx, query, args)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil {
			d.log.Warn("could not close cursor", "db", d.String(), "error", cerr)
		}
	}()
	if shape == nil {
		return nil, nil
	}
	return shape(cur)
}

// EnterScope enters a transaction scope. The outermost entry starts the
// backend transaction and disables retry for its duration: a connection lost
// mid-transaction cannot be resumed on a new one, the whole transaction has
// to fail. Nested entries only count.
func (d *DB) EnterScope(ctx context.Context) error {
	if d.depth == 0 {
		if err := d.begin(ctx); err != nil {
			return err
		}
		d.savedRetry = d.retry
		d.retry = 0
		d.log.Debug("BEGIN", "db", d.String())
	}
	d.depth++
	return nil
}

// ExitScope leaves a transaction scope. cause carries the error, if any,
// from the scope body. The outermost exit commits on success, rolls back on
// failure or abort, and restores the retry budget. The abort marker is
// consumed there; every other cause is returned unchanged after the
// bookkeeping ran.
func (d *DB) ExitScope(ctx context.Context, cause error) error {
	d.depth--
	if d.depth < 0 {
		depth := d.depth
		d.depth = 0
		return &UnbalancedScopeError{Depth: depth}
	}
	if d.depth == 0 {
		if cause != nil {
			if err := d.rollback(); err != nil {
				if IsAborting(cause) {
					return err
				}
				return fmt.Errorf("%w: rolling back transaction: %v", cause, err)
			}
			// A deliberate abort is an expected control path; only real
			// failures get the ROLLBACK log line.
			if !IsAborting(cause) {
				d.log.Debug("ROLLBACK", "db", d.String())
			}
		} else {
			if err := d.commit(); err != nil {
				return err
			}
			d.log.Debug("COMMIT", "db", d.String())
		}
		d.retry = d.savedRetry
		d.savedRetry = -1
		if IsAborting(cause) {
			return nil
		}
	}
	return cause
}

// Transaction runs fn inside a transaction scope. Nested calls reuse the
// outer physical transaction. If fn returns an error or panics, the
// transaction is rolled back; a panic is re-raised after the rollback.
func (d *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := d.EnterScope(ctx); err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = d.ExitScope(ctx, fmt.Errorf("dbquery: panic in transaction: %v", v))
			panic(v)
		}
	}()
	return d.ExitScope(ctx, fn(ctx))
}

// AbortTransaction returns the abort signal that forces a rollback from any
// nesting depth. The scope body returns it in place of a regular error; the
// outermost scope exit rolls back and consumes it, so the top-level
// Transaction call returns nil. Outside a transaction it fails with
// ErrNoTransaction.
func (d *DB) AbortTransaction() error {
	if d.depth <= 0 {
		return ErrNoTransaction
	}
	return errAbort
}

// begin starts the backend transaction, connecting first if needed.
func (d *DB) begin(ctx context.Context) error {
	if d.conn == nil {
		if err := d.Connect(ctx); err != nil {
			return err
		}
	}
	return d.conn.Begin(ctx)
}

func (d *DB) commit() error {
	if d.conn == nil {
		return &ConnectionLostError{Op: "commit"}
	}
	return d.conn.Commit()
}

func (d *DB) rollback() error {
	if d.conn == nil {
		return &ConnectionLostError{Op: "roll back"}
	}
	return d.conn.Rollback()
}

// Query binds sql to this handle without result shaping. Use it for
// statements whose outcome does not matter.
func (d *DB) Query(sql string) *Query {
	return &Query{db: d, sql: sql}
}

// Select binds a SELECT statement. formatter may be nil; see RowFormatter.
func (d *DB) Select(sql string, formatter RowFormatter) *Select {
	return &Select{db: d, sql: sql, format: formatter}
}

// SelectOne binds a SELECT statement expected to return a single row.
func (d *DB) SelectOne(sql string, formatter RowFormatter) *SelectOne {
	return &SelectOne{db: d, sql: sql, format: formatter}
}

// SelectIterator binds a SELECT statement streamed to callback in bounded
// memory. See IterOption for chunk size, callback arguments and formatting.
func (d *DB) SelectIterator(sql string, callback IterCallback, opts ...IterOption) *SelectIterator {
	s := &SelectIterator{db: d, sql: sql, callback: callback, chunk: 1}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunk <= 0 {
		s.chunk = 1
	}
	return s
}

// Manipulation binds a data-changing statement returning its affected-row
// count. Chain Expect to enforce a count.
func (d *DB) Manipulation(sql string) *Manipulation {
	return &Manipulation{db: d, sql: sql}
}

// QueryCursor binds a statement whose cursor the caller consumes directly,
// scoped to a callback that guarantees release.
func (d *DB) QueryCursor(sql string) *QueryCursor {
	return &QueryCursor{db: d, sql: sql}
}
