// Package dialect defines the backend driver capability used by dbquery.
//
// A backend is described by three small interfaces:
//
//   - Driver: opens the single physical connection a handle owns and renders
//     statements for diagnostics.
//   - Conn: executes statements and controls the connection's transaction.
//   - Cursor: exposes rows, column metadata and the affected-row count of a
//     single execution.
//
// # Supported Dialects
//
// Each backend is identified by a constant name:
//
//	dialect.SQLite   = "sqlite"
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//
// # Driver Registry
//
// Backend packages register an Opener in their init function, in the manner
// of database/sql drivers. Importing a backend for side effects makes it
// available to dialect.Open:
//
//	import (
//	    "github.com/syssam/dbquery/dialect"
//	    _ "github.com/syssam/dbquery/dialect/postgres"
//	)
//
//	drv, err := dialect.Open(dialect.Postgres, "postgres://localhost/app")
//
// # Error Classification
//
// Backends distinguish connection-level failures from all other errors by
// wrapping them in *OperationalError. Only operational errors are candidates
// for the reconnect-and-retry protocol in the root package; everything else
// is surfaced unchanged.
//
// # Sub-packages
//
//   - dialect/sql: shared database/sql-backed implementation
//   - dialect/sqlite: SQLite backend (modernc.org/sqlite)
//   - dialect/postgres: PostgreSQL backend (lib/pq)
//   - dialect/mysql: MySQL backend (go-sql-driver/mysql)
package dialect
