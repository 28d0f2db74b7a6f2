package dbquery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/dbquery/dialect"
)

// QueryStats holds statement execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of result-set statements executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of data-changing statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of statement errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of statement statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is called when a statement exceeds the slow threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver wraps a dialect.Driver with statement statistics collection.
// Hand it to New in place of the bare driver.
type StatsDriver struct {
	dialect.Driver
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.slowThreshold = d }
}

// WithSlowQueryHook sets a callback for statements over the threshold.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) { s.slowHook = hook }
}

// WithSlowQueryLog logs slow statements to the default logger. Convenience
// wrapper around WithSlowQueryHook.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(_ context.Context, query string, args []any, duration time.Duration) {
		slog.Warn("slow query detected", "duration", duration, "query", query, "args", args)
	})
}

// NewStatsDriver wraps a backend driver with statistics collection.
//
//	drv, _ := dialect.Open(dialect.Postgres, dsn)
//	stats := dbquery.NewStatsDriver(drv, dbquery.WithSlowQueryLog())
//	db := dbquery.New(stats, dbquery.WithRetry(3))
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats { return d.stats }

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Connect opens the connection and instruments it.
func (d *StatsDriver) Connect(ctx context.Context) (dialect.Conn, error) {
	conn, err := d.Driver.Connect(ctx)
	if err != nil {
		d.stats.Errors.Add(1)
		return nil, err
	}
	return &statsConn{Conn: conn, drv: d}, nil
}

func (d *StatsDriver) record(ctx context.Context, query string, args []any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		d.stats.TotalQueries.Add(1)
	} else {
		d.stats.TotalExecs.Add(1)
	}
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration > threshold {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, query, args, duration)
		}
	}
}

// statsConn records statistics for every statement on the connection.
type statsConn struct {
	dialect.Conn
	drv *StatsDriver
}

func (c *statsConn) Query(ctx context.Context, query string, args []any) (dialect.Cursor, error) {
	start := time.Now()
	cur, err := c.Conn.Query(ctx, query, args)
	c.drv.record(ctx, query, args, start, err, true)
	return cur, err
}

func (c *statsConn) Exec(ctx context.Context, query string, args []any) (dialect.Cursor, error) {
	start := time.Now()
	cur, err := c.Conn.Exec(ctx, query, args)
	c.drv.record(ctx, query, args, start, err, false)
	return cur, err
}

// DebugDriver wraps a dialect.Driver with statement logging.
type DebugDriver struct {
	dialect.Driver
	log func(context.Context, ...any)
}

// DebugOption configures the DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLog sets a custom log function.
func DebugWithLog(logFunc func(context.Context, ...any)) DebugOption {
	return func(d *DebugDriver) { d.log = logFunc }
}

// NewDebugDriver wraps a backend driver with statement logging.
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		Driver: drv,
		log: func(_ context.Context, v ...any) {
			slog.Info(fmt.Sprint(v...))
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect opens the connection and instruments it.
func (d *DebugDriver) Connect(ctx context.Context) (dialect.Conn, error) {
	d.log(ctx, "connect ", d.Dialect())
	conn, err := d.Driver.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &debugConn{Conn: conn, log: d.log}, nil
}

// debugConn logs every statement and transaction boundary.
type debugConn struct {
	dialect.Conn
	log func(context.Context, ...any)
}

func (c *debugConn) Query(ctx context.Context, query string, args []any) (dialect.Cursor, error) {
	c.log(ctx, fmt.Sprintf("query: %s args: %v", query, args))
	return c.Conn.Query(ctx, query, args)
}

func (c *debugConn) Exec(ctx context.Context, query string, args []any) (dialect.Cursor, error) {
	c.log(ctx, fmt.Sprintf("exec: %s args: %v", query, args))
	return c.Conn.Exec(ctx, query, args)
}

func (c *debugConn) Begin(ctx context.Context) error {
	c.log(ctx, "begin transaction")
	return c.Conn.Begin(ctx)
}

func (c *debugConn) Commit() error {
	c.log(context.Background(), "commit transaction")
	return c.Conn.Commit()
}

func (c *debugConn) Rollback() error {
	c.log(context.Background(), "rollback transaction")
	return c.Conn.Rollback()
}

// Ensure interfaces are implemented.
var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Conn   = (*statsConn)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Conn   = (*debugConn)(nil)
)
