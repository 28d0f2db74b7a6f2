package dbquery

import (
	"context"

	"github.com/syssam/dbquery/dialect"
)

// RowFormatter transforms a raw row using the result's column metadata.
// ToMapFormatter is the canonical implementation; custom formatters follow
// the same shape.
type RowFormatter func(row dialect.Row, columns []string) (any, error)

// rowSource yields the next raw row. ok is false when the source is
// exhausted.
type rowSource func() (row dialect.Row, ok bool, err error)

// sliceSource yields from materialized rows.
func sliceSource(rows []dialect.Row) rowSource {
	i := 0
	return func() (dialect.Row, bool, error) {
		if i >= len(rows) {
			return nil, false, nil
		}
		row := rows[i]
		i++
		return row, true, nil
	}
}

// chunkSource yields from a live cursor, fetching internally in chunks of
// the given size.
func chunkSource(cur dialect.Cursor, chunk int) rowSource {
	var buf []dialect.Row
	done := false
	return func() (dialect.Row, bool, error) {
		if len(buf) == 0 && !done {
			rows, err := cur.Fetch(chunk)
			if err != nil {
				return nil, false, err
			}
			if len(rows) == 0 {
				done = true
			}
			buf = rows
		}
		if len(buf) == 0 {
			return nil, false, nil
		}
		row := buf[0]
		buf = buf[1:]
		return row, true, nil
	}
}

// RowSeq is a lazy, single-pass sequence of rows. It is not restartable and,
// when backed by a live cursor, must be consumed before the originating call
// returns.
//
//	for seq.Next() {
//	    use(seq.Value())
//	}
//	if err := seq.Err(); err != nil { ... }
type RowSeq struct {
	src    rowSource
	cols   []string
	format RowFormatter

	cur  any
	err  error
	done bool
}

// Next advances the sequence. It returns false when the sequence is
// exhausted or failed; check Err afterwards.
func (s *RowSeq) Next() bool {
	if s.done {
		return false
	}
	row, ok, err := s.src()
	if err != nil {
		s.err, s.done = err, true
		return false
	}
	if !ok {
		s.done = true
		return false
	}
	if s.format != nil {
		v, err := s.format(row, s.cols)
		if err != nil {
			s.err, s.done = err, true
			return false
		}
		s.cur = v
	} else {
		s.cur = row
	}
	return true
}

// Value returns the current row: a dialect.Row, or whatever the formatter
// produced.
func (s *RowSeq) Value() any { return s.cur }

// Err returns the first error hit while iterating.
func (s *RowSeq) Err() error { return s.err }

// Columns returns the result's column names.
func (s *RowSeq) Columns() []string { return s.cols }

// Collect drains the remainder of the sequence.
func (s *RowSeq) Collect() ([]any, error) {
	var out []any
	for s.Next() {
		out = append(out, s.Value())
	}
	return out, s.Err()
}

// Select executes a SELECT and fetches all rows. The result is a single-pass
// sequence; with a formatter each row is passed through it lazily, without
// one the sequence yields the raw rows.
type Select struct {
	db     *DB
	sql    string
	format RowFormatter
}

// Call executes the statement and returns the row sequence.
func (s *Select) Call(ctx context.Context, params Params) (*RowSeq, error) {
	v, err := s.db.run(ctx, s.sql, params, execRows, func(cur dialect.Cursor) (any, error) {
		rows, err := cur.FetchAll()
		if err != nil {
			return nil, err
		}
		return &RowSeq{src: sliceSource(rows), cols: cur.Columns(), format: s.format}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RowSeq), nil
}

// Show renders the statement as the backend would execute it.
func (s *Select) Show(params Params) (string, error) {
	return s.db.Show(s.sql, params)
}

// SelectOne executes a SELECT expected to return a single row.
type SelectOne struct {
	db     *DB
	sql    string
	format RowFormatter
}

// Call returns the one row: formatted when a formatter is set, unwrapped to
// the scalar value for single-column rows, the raw row otherwise. A result
// of zero or several rows returns nil, not an error.
func (s *SelectOne) Call(ctx context.Context, params Params) (any, error) {
	return s.db.run(ctx, s.sql, params, execRows, func(cur dialect.Cursor) (any, error) {
		rows, err := cur.Fetch(2)
		if err != nil {
			return nil, err
		}
		if len(rows) != 1 {
			return nil, nil
		}
		row := rows[0]
		if s.format != nil {
			return s.format(row, cur.Columns())
		}
		if len(row) == 1 {
			return row[0], nil
		}
		return row, nil
	})
}

// Show renders the statement as the backend would execute it.
func (s *SelectOne) Show(params Params) (string, error) {
	return s.db.Show(s.sql, params)
}

// IterCallback handles the row sequence of a SelectIterator call, together
// with the extra arguments bound at construction.
type IterCallback func(rows *RowSeq, args ...any) error

// IterOption configures a SelectIterator.
type IterOption func(*SelectIterator)

// WithChunkSize sets how many rows are fetched from the backend per round
// trip. Non-positive values fall back to 1.
func WithChunkSize(n int) IterOption {
	return func(s *SelectIterator) { s.chunk = n }
}

// WithIterArgs sets extra arguments passed to the callback.
func WithIterArgs(args ...any) IterOption {
	return func(s *SelectIterator) { s.args = args }
}

// WithIterFormatter sets the per-row formatter applied inside the sequence.
func WithIterFormatter(f RowFormatter) IterOption {
	return func(s *SelectIterator) { s.format = f }
}

// SelectIterator streams a result set to a callback in bounded memory. The
// callback is invoked exactly once with a lazy sequence that fetches rows in
// chunks of the configured size and yields them one at a time.
type SelectIterator struct {
	db       *DB
	sql      string
	format   RowFormatter
	callback IterCallback
	args     []any
	chunk    int
}

// Call executes the statement and runs the callback over the row sequence.
// The sequence is only valid for the duration of the callback.
func (s *SelectIterator) Call(ctx context.Context, params Params) error {
	_, err := s.db.run(ctx, s.sql, params, execRows, func(cur dialect.Cursor) (any, error) {
		seq := &RowSeq{src: chunkSource(cur, s.chunk), cols: cur.Columns(), format: s.format}
		return nil, s.callback(seq, s.args...)
	})
	return err
}

// Show renders the statement as the backend would execute it.
func (s *SelectIterator) Show(params Params) (string, error) {
	return s.db.Show(s.sql, params)
}
