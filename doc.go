// Package dbquery is a thin access layer over relational database
// connections that standardizes query execution, transaction scoping and
// retry-on-disconnect behavior.
//
// A DB handle owns one physical connection, opened lazily. SQL statements
// are bound once to a Query-family object and called many times with
// positional or named parameters:
//
//	drv, err := dialect.Open(dialect.Postgres, "postgres://localhost/app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db := dbquery.New(drv, dbquery.WithRetry(3))
//	defer db.Close()
//
//	byID := db.SelectOne("SELECT name FROM users WHERE id = $1", nil)
//	name, err := byID.Call(ctx, dbquery.Positional(7))
//
// # Query Variants
//
//   - Query: execute, ignore the result
//   - Select: fetch all rows, optionally formatted per row
//   - SelectOne: exactly one row, unwrapped to a scalar when single-column
//   - SelectIterator: stream rows to a callback in bounded memory
//   - Manipulation: affected-row count with an optional expected-count check
//   - QueryCursor: scoped access to the raw cursor
//
// # Retry
//
// Every call retries backend connection-level failures ("operational"
// errors) on a fresh connection, up to the handle's retry budget. The budget
// counts attempts, not extra retries; 0 and 1 both mean a single attempt.
// All other errors surface unchanged.
//
// # Transactions
//
// The handle is a reentrant transaction boundary. Nested scopes share the
// single outer transaction; only the outermost exit commits or rolls back.
// While a transaction is open the retry budget is forced to 0, because a
// transaction cannot be resumed on a new connection.
//
//	err := db.Transaction(ctx, func(ctx context.Context) error {
//	    if _, err := debit.Call(ctx, dbquery.Positional(7, 100)); err != nil {
//	        return err
//	    }
//	    return db.Transaction(ctx, func(ctx context.Context) error {
//	        _, err := credit.Call(ctx, dbquery.Positional(8, 100))
//	        return err
//	    })
//	})
//
// AbortTransaction returns a signal that forces a rollback from any nesting
// depth without counting as an application error: the outermost Transaction
// call returns nil.
//
// # Backends
//
// Backends register themselves like database/sql drivers; blank-import the
// ones to link:
//
//	import (
//	    _ "github.com/syssam/dbquery/dialect/postgres"
//	    _ "github.com/syssam/dbquery/dialect/sqlite"
//	)
package dbquery
