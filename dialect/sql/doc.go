// Package sql implements the dialect capability on top of database/sql.
//
// The backend packages (dialect/sqlite, dialect/postgres, dialect/mysql) are
// thin wrappers around this package: they pick the database/sql driver name,
// supply the operational-error classifier and, where the backend allows it,
// the statement formatter.
//
// A Driver pins its pool to a single connection, so a dbquery handle keeps
// the "one logical connection" semantics even though database/sql itself is
// pool-oriented. OpenDB accepts an externally managed *sql.DB, which is how
// the tests run against sqlmock.
package sql
