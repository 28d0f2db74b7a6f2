package dialect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Supported dialect names.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// Row is a single database row as produced by a Cursor.
type Row []any

// ErrFormatUnsupported is returned by drivers that cannot render a statement
// with its parameters substituted. Callers are expected to fall back to an
// unformatted representation.
var ErrFormatUnsupported = errors.New("dialect: statement formatting not supported")

// Driver is the backend driver capability. A Driver knows how to open the
// single physical connection a handle owns and how to render statements for
// diagnostics. Implementations live in the per-backend sub-packages and
// register themselves with Register.
type Driver interface {
	// Connect opens a new physical connection. Connection-level failures are
	// reported as *OperationalError.
	Connect(ctx context.Context) (Conn, error)

	// Dialect returns the dialect name.
	Dialect() string

	// Format renders the statement with all parameters substituted, the way
	// the server would see it. Drivers without support return
	// ErrFormatUnsupported.
	Format(query string, args []any) (string, error)
}

// Conn is one physical connection. It is not safe for concurrent use.
type Conn interface {
	// Query executes a statement that produces a result set.
	Query(ctx context.Context, query string, args []any) (Cursor, error)

	// Exec executes a statement and reports the affected-row count through
	// the returned Cursor.
	Exec(ctx context.Context, query string, args []any) (Cursor, error)

	// Begin starts a transaction on this connection.
	Begin(ctx context.Context) error

	// Commit commits the transaction started by Begin.
	Commit() error

	// Rollback rolls back the transaction started by Begin.
	Rollback() error

	// Close releases the connection.
	Close() error
}

// Cursor exposes the result of a single statement execution.
type Cursor interface {
	// Columns returns the result column names, or nil when the statement
	// produced no result set.
	Columns() []string

	// Fetch returns up to n rows. A short or empty result means the set is
	// exhausted.
	Fetch(n int) ([]Row, error)

	// FetchAll returns all remaining rows.
	FetchAll() ([]Row, error)

	// RowsAffected returns the affected-row count for Exec results.
	RowsAffected() int64

	// Close releases the cursor.
	Close() error
}

// OperationalError marks a connection-level failure reported by a backend.
// Statements failing with an OperationalError may be retried on a fresh
// connection; all other errors are surfaced unchanged.
type OperationalError struct {
	Dialect string
	Err     error
}

// Error returns the error string.
func (e *OperationalError) Error() string {
	return fmt.Sprintf("dialect: %s: operational: %v", e.Dialect, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *OperationalError) Unwrap() error {
	return e.Err
}

// IsOperational reports whether err is (or wraps) an OperationalError.
func IsOperational(err error) bool {
	if err == nil {
		return false
	}
	var e *OperationalError
	return errors.As(err, &e)
}

// Opener constructs a Driver for a data source name.
type Opener func(dsn string) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Opener)
)

// Register makes a driver available under the given dialect name. It is
// intended to be called from the init function of a backend package.
func Register(name string, opener Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if opener == nil {
		panic("dialect: Register opener is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("dialect: Register called twice for driver " + name)
	}
	drivers[name] = opener
}

// Open resolves the registered driver for the dialect name and opens it with
// the given data source name.
func Open(name, dsn string) (Driver, error) {
	driversMu.RLock()
	opener, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dialect: unknown driver %q (forgotten import?)", name)
	}
	return opener(dsn)
}

// Drivers returns a sorted list of the registered dialect names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
