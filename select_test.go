package dbquery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbquery/dialect"
)

func TestSelectRawRows(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"id", "name"}
	drv.rows = []dialect.Row{{int64(1), "Alice"}, {int64(2), "Bob"}}
	db := New(drv)

	seq, err := db.Select("SELECT id, name FROM users", nil).Call(context.Background(), NoParams)
	require.NoError(t, err)

	got, err := seq.Collect()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, dialect.Row{int64(1), "Alice"}, got[0])
	assert.Equal(t, dialect.Row{int64(2), "Bob"}, got[1])
}

func TestSelectFormatted(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"ID", "Name"}
	drv.rows = []dialect.Row{{int64(1), "Alice"}}
	db := New(drv)

	seq, err := db.Select("SELECT id, name FROM users", ToMapFormatter).Call(context.Background(), NoParams)
	require.NoError(t, err)

	require.True(t, seq.Next())
	assert.Equal(t, map[string]any{"id": int64(1), "name": "Alice"}, seq.Value())
	assert.False(t, seq.Next())
	require.NoError(t, seq.Err())
}

func TestSelectSequenceIsSinglePass(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	drv.rows = []dialect.Row{{1}, {2}}
	db := New(drv)

	seq, err := db.Select("SELECT n FROM t", nil).Call(context.Background(), NoParams)
	require.NoError(t, err)

	_, err = seq.Collect()
	require.NoError(t, err)
	assert.False(t, seq.Next(), "a drained sequence does not restart")
}

func TestSelectFormatterErrorStopsSequence(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	drv.rows = []dialect.Row{{1}, {2}}
	db := New(drv)
	boom := errors.New("bad row")

	seq, err := db.Select("SELECT n FROM t", func(dialect.Row, []string) (any, error) {
		return nil, boom
	}).Call(context.Background(), NoParams)
	require.NoError(t, err)

	assert.False(t, seq.Next())
	require.ErrorIs(t, seq.Err(), boom)
}

func TestSelectOne(t *testing.T) {
	tests := []struct {
		name string
		cols []string
		rows []dialect.Row
		want any
	}{
		{"no_rows", []string{"n"}, nil, nil},
		{"two_rows", []string{"n"}, []dialect.Row{{1}, {2}}, nil},
		{"single_column_unwraps", []string{"n"}, []dialect.Row{{int64(42)}}, int64(42)},
		{"multi_column_returns_row", []string{"id", "name"}, []dialect.Row{{int64(1), "Alice"}}, dialect.Row{int64(1), "Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := newFakeDriver()
			drv.cols = tt.cols
			drv.rows = tt.rows
			db := New(drv)

			got, err := db.SelectOne("SELECT ... FROM t", nil).Call(context.Background(), NoParams)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectOneFormatted(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"id", "name"}
	drv.rows = []dialect.Row{{int64(1), "Alice"}}
	db := New(drv)

	got, err := db.SelectOne("SELECT id, name FROM users WHERE id = ?", ToMapFormatter).Call(context.Background(), Positional(1))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "Alice"}, got)
}

func TestSelectIteratorChunked(t *testing.T) {
	rows := make([]dialect.Row, 10)
	for i := range rows {
		rows[i] = dialect.Row{i}
	}

	for _, chunk := range []int{-1, 0, 1, 2, 3, 100} {
		drv := newFakeDriver()
		drv.cols = []string{"n"}
		drv.rows = rows
		db := New(drv)

		var (
			calls int
			got   []any
		)
		it := db.SelectIterator("SELECT n FROM t", func(seq *RowSeq, args ...any) error {
			calls++
			for seq.Next() {
				got = append(got, seq.Value().(dialect.Row)[0])
			}
			return seq.Err()
		}, WithChunkSize(chunk))

		require.NoError(t, it.Call(context.Background(), NoParams))
		assert.Equal(t, 1, calls, "callback runs exactly once (chunk %d)", chunk)
		require.Len(t, got, 10)
		for i, v := range got {
			assert.Equal(t, i, v, "row order preserved (chunk %d)", chunk)
		}
	}
}

func TestSelectIteratorCallbackArgs(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	drv.rows = []dialect.Row{{1}}
	db := New(drv)

	var gotArgs []any
	it := db.SelectIterator("SELECT n FROM t", func(seq *RowSeq, args ...any) error {
		_, err := seq.Collect()
		gotArgs = args
		return err
	}, WithIterArgs("extra", 7))

	require.NoError(t, it.Call(context.Background(), NoParams))
	assert.Equal(t, []any{"extra", 7}, gotArgs)
}

func TestSelectIteratorFormatter(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"N"}
	drv.rows = []dialect.Row{{1}, {2}}
	db := New(drv)

	var got []any
	it := db.SelectIterator("SELECT n FROM t", func(seq *RowSeq, args ...any) error {
		var err error
		got, err = seq.Collect()
		return err
	}, WithChunkSize(2), WithIterFormatter(ToMapFormatter))

	require.NoError(t, it.Call(context.Background(), NoParams))
	assert.Equal(t, []any{map[string]any{"n": 1}, map[string]any{"n": 2}}, got)
}

func TestSelectIteratorCallbackError(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	drv.rows = []dialect.Row{{1}}
	db := New(drv)
	boom := errors.New("handler failed")

	it := db.SelectIterator("SELECT n FROM t", func(seq *RowSeq, args ...any) error {
		return boom
	})
	err := it.Call(context.Background(), NoParams)
	require.ErrorIs(t, err, boom)
}

func TestManipulation(t *testing.T) {
	drv := newFakeDriver()
	drv.affected = 3
	db := New(drv)

	n, err := db.Manipulation("DELETE FROM t WHERE archived").Call(context.Background(), NoParams)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestManipulationExpectedCount(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		drv := newFakeDriver()
		drv.affected = 1
		db := New(drv)

		n, err := db.Manipulation("UPDATE t SET x = 1 WHERE id = ?").Expect(1).Call(context.Background(), Positional(7))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("mismatch", func(t *testing.T) {
		drv := newFakeDriver()
		drv.affected = 2
		db := New(drv, WithRetry(5))

		_, err := db.Manipulation("UPDATE t SET x = 1 WHERE id = ?").Expect(1).Call(context.Background(), Positional(7))
		require.Error(t, err)
		assert.True(t, IsManipulationCheck(err))

		var ce *ManipulationCheckError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, int64(1), ce.Expected)
		assert.Equal(t, int64(2), ce.Actual)
		assert.Equal(t, 1, drv.execs, "a count mismatch never retries")
	})
}

func TestQueryCursorScopedRelease(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	drv.rows = []dialect.Row{{1}, {2}, {3}}
	db := New(drv)

	var seen int
	err := db.QueryCursor("SELECT n FROM t").Call(context.Background(), NoParams, func(cur dialect.Cursor) error {
		rows, err := cur.FetchAll()
		seen = len(rows)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestQueryCursorCloseFailureSwallowed(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	drv.curCloseErr = errors.New("cursor already gone")
	db := New(drv)

	err := db.QueryCursor("SELECT n FROM t").Call(context.Background(), NoParams, func(cur dialect.Cursor) error {
		return nil
	})
	require.NoError(t, err, "cursor close failures are logged, not raised")
}

func TestQueryCursorPanicStillCloses(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	db := New(drv)

	require.Panics(t, func() {
		_ = db.QueryCursor("SELECT n FROM t").Call(context.Background(), NoParams, func(cur dialect.Cursor) error {
			panic("consumer bug")
		})
	})
}
