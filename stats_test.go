package dbquery

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbquery/dialect"
)

func TestStatsDriverCounts(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	drv.rows = []dialect.Row{{1}}
	stats := NewStatsDriver(drv)
	db := New(stats)

	_, err := db.Select("SELECT n FROM t", nil).Call(context.Background(), NoParams)
	require.NoError(t, err)
	_, err = db.Manipulation("DELETE FROM t").Call(context.Background(), NoParams)
	require.NoError(t, err)

	snap := stats.QueryStats().Stats()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.TotalExecs)
	assert.Equal(t, int64(0), snap.Errors)
	assert.GreaterOrEqual(t, snap.TotalDuration, time.Duration(0))
}

func TestStatsDriverCountsErrors(t *testing.T) {
	drv := newFakeDriver()
	drv.execErr = operational("server has gone away")
	drv.execFailures = -1
	stats := NewStatsDriver(drv)
	db := New(stats, WithRetry(3))

	err := db.Query("INSERT INTO t VALUES (1)").Call(context.Background(), NoParams)
	require.Error(t, err)

	snap := stats.QueryStats().Stats()
	assert.Equal(t, int64(3), snap.TotalExecs)
	assert.Equal(t, int64(3), snap.Errors)
}

func TestStatsReset(t *testing.T) {
	drv := newFakeDriver()
	stats := NewStatsDriver(drv)
	db := New(stats)

	require.NoError(t, db.Query("DELETE FROM t").Call(context.Background(), NoParams))
	stats.QueryStats().Reset()

	snap := stats.QueryStats().Stats()
	assert.Equal(t, int64(0), snap.TotalExecs)
	assert.Equal(t, time.Duration(0), snap.TotalDuration)
}

func TestSlowQueryHook(t *testing.T) {
	drv := newFakeDriver()
	var (
		slowQuery string
		calls     int
	)
	stats := NewStatsDriver(drv,
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, args []any, d time.Duration) {
			slowQuery = query
			calls++
		}),
	)
	db := New(stats)

	require.NoError(t, db.Query("DELETE FROM t").Call(context.Background(), NoParams))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "DELETE FROM t", slowQuery)
	assert.Equal(t, int64(1), stats.QueryStats().Stats().SlowQueries)
}

func TestSlowThresholdUpdate(t *testing.T) {
	stats := NewStatsDriver(newFakeDriver())
	assert.Equal(t, 100*time.Millisecond, stats.SlowThreshold())
	stats.SetSlowThreshold(time.Second)
	assert.Equal(t, time.Second, stats.SlowThreshold())
}

func TestStatsSnapshotString(t *testing.T) {
	snap := StatsSnapshot{TotalQueries: 2, TotalExecs: 2, TotalDuration: 4 * time.Second, SlowQueries: 1, Errors: 0}
	s := snap.String()
	assert.Contains(t, s, "queries=2")
	assert.Contains(t, s, "avg=1s")
	assert.Contains(t, s, "slow=1")
}

func TestDebugDriverLogsStatements(t *testing.T) {
	drv := newFakeDriver()
	drv.cols = []string{"n"}
	var lines []string
	debug := NewDebugDriver(drv, DebugWithLog(func(_ context.Context, v ...any) {
		lines = append(lines, fmt.Sprint(v...))
	}))
	db := New(debug)

	require.NoError(t, db.Transaction(context.Background(), func(ctx context.Context) error {
		_, err := db.Select("SELECT n FROM t", nil).Call(ctx, NoParams)
		return err
	}))

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "connect")
	assert.Contains(t, joined, "begin transaction")
	assert.Contains(t, joined, "query: SELECT n FROM t")
	assert.Contains(t, joined, "commit transaction")
}
