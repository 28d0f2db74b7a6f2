// Package sqlite provides the SQLite backend, built on the cgo-free
// modernc.org/sqlite driver.
//
// SQLite has no server-side statement rendering, so Show falls back to the
// unformatted "sql + params" representation.
package sqlite

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/dbquery/dialect"
	dsql "github.com/syssam/dbquery/dialect/sql"
)

func init() {
	dialect.Register(dialect.SQLite, Open)
}

// Open returns a SQLite driver for the given database file or URI.
func Open(dsn string) (dialect.Driver, error) {
	return dsql.NewDriver(dialect.SQLite, "sqlite", dsn,
		dsql.WithOperational(isOperational),
	), nil
}

// isOperational classifies sqlite result codes that indicate a broken or
// unusable connection rather than a statement-level problem.
func isOperational(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_BUSY,
		sqlite3.SQLITE_LOCKED,
		sqlite3.SQLITE_IOERR,
		sqlite3.SQLITE_CANTOPEN,
		sqlite3.SQLITE_PROTOCOL,
		sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}
