package dbquery

import (
	"context"
	"database/sql"
	"sort"

	"github.com/syssam/dbquery/dialect"
)

// Params carries statement parameters as either positional values or named
// values, never both. When both are set, positional wins; the rule is
// applied once per call.
type Params struct {
	positional []any
	named      map[string]any
}

// Positional builds positional parameters.
func Positional(values ...any) Params {
	return Params{positional: values}
}

// Named builds named parameters. Values are passed to the backend as
// sql.Named arguments; backends differ in how far they support them.
func Named(values map[string]any) Params {
	return Params{named: values}
}

// NoParams is the empty parameter set.
var NoParams = Params{}

// resolve applies the positional-wins rule. Named values are ordered by name
// so renderings and tests are deterministic.
func (p Params) resolve() []any {
	if len(p.positional) > 0 {
		return p.positional
	}
	if len(p.named) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.named))
	for name := range p.named {
		names = append(names, name)
	}
	sort.Strings(names)
	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, sql.Named(name, p.named[name]))
	}
	return args
}

// run is the retry-wrapped execution protocol shared by the whole Query
// family. Operational errors are retried on a fresh connection while the
// attempt count stays below the handle's retry budget; a budget of 0 or 1
// means a single attempt. Anything else propagates immediately.
func (d *DB) run(ctx context.Context, query string, params Params, kind execKind, shape func(dialect.Cursor) (any, error)) (any, error) {
	attempt := 1
	for {
		v, err := d.execute(ctx, query, params, kind, shape)
		if err == nil {
			return v, nil
		}
		if !dialect.IsOperational(err) || attempt >= d.retry {
			return nil, err
		}
		d.log.Warn("connection failed, retrying",
			"db", d.String(), "attempt", attempt, "error", err)
		attempt++
		// Close the damaged connection so the next attempt reconnects.
		d.Close()
	}
}

// Query executes a statement without shaping a result. Use the Select and
// Manipulation variants when the outcome matters.
type Query struct {
	db  *DB
	sql string
}

// Call executes the statement with the given parameters.
func (q *Query) Call(ctx context.Context, params Params) error {
	_, err := q.db.run(ctx, q.sql, params, execAffected, nil)
	return err
}

// Show renders the statement as the backend would execute it.
func (q *Query) Show(params Params) (string, error) {
	return q.db.Show(q.sql, params)
}

// Manipulation executes a data-changing statement and returns the
// affected-row count, optionally checking it against an expected value.
type Manipulation struct {
	db     *DB
	sql    string
	expect int64
	check  bool
}

// Expect arms the affected-row count check. A mismatch fails the call with
// *ManipulationCheckError.
func (m *Manipulation) Expect(n int64) *Manipulation {
	m.expect, m.check = n, true
	return m
}

// Call executes the statement and returns the affected-row count. A count
// mismatch is a logic error, not an operational one, so it never retries.
func (m *Manipulation) Call(ctx context.Context, params Params) (int64, error) {
	v, err := m.db.run(ctx, m.sql, params, execAffected, func(cur dialect.Cursor) (any, error) {
		n := cur.RowsAffected()
		if m.check && n != m.expect {
			return nil, &ManipulationCheckError{Expected: m.expect, Actual: n}
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Show renders the statement as the backend would execute it.
func (m *Manipulation) Show(params Params) (string, error) {
	return m.db.Show(m.sql, params)
}

// CursorFunc consumes a live cursor inside a QueryCursor call.
type CursorFunc func(cur dialect.Cursor) error

// QueryCursor executes a statement and hands the raw cursor to a callback.
// The cursor is released on every exit path, including a panicking callback;
// close failures are logged, never raised.
type QueryCursor struct {
	db  *DB
	sql string
}

// Call executes the statement and runs fn with the live cursor. The cursor
// must not be retained past fn's return.
func (q *QueryCursor) Call(ctx context.Context, params Params, fn CursorFunc) error {
	_, err := q.db.run(ctx, q.sql, params, execRows, func(cur dialect.Cursor) (any, error) {
		return nil, fn(cur)
	})
	return err
}

// Show renders the statement as the backend would execute it.
func (q *QueryCursor) Show(params Params) (string, error) {
	return q.db.Show(q.sql, params)
}
