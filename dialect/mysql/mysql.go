// Package mysql provides the MySQL backend, built on go-sql-driver/mysql.
package mysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/syssam/dbquery/dialect"
	dsql "github.com/syssam/dbquery/dialect/sql"
)

func init() {
	dialect.Register(dialect.MySQL, Open)
}

// Open returns a MySQL driver for the given DSN.
func Open(dsn string) (dialect.Driver, error) {
	return dsql.NewDriver(dialect.MySQL, "mysql", dsn,
		dsql.WithOperational(isOperational),
		dsql.WithFormatter(format),
	), nil
}

// isOperational classifies connection-level failures reported by the driver
// or by the server.
func isOperational(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1040, // ER_CON_COUNT_ERROR: too many connections
			1053, // ER_SERVER_SHUTDOWN
			1077, // ER_NORMAL_SHUTDOWN
			1152, // ER_ABORTING_CONNECTION
			1927: // ER_CONNECTION_KILLED
			return true
		}
	}
	return false
}

// format substitutes ? placeholders with quoted literals, skipping question
// marks inside single-quoted strings.
func format(query string, args []any) (string, error) {
	var b strings.Builder
	next, quoted := 0, false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteByte(ch)
		case ch == '?' && !quoted:
			if next >= len(args) {
				return "", fmt.Errorf("mysql: placeholder %d out of range for %d parameters", next+1, len(args))
			}
			b.WriteString(literal(args[next]))
			next++
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}

func literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return quote(v)
	case []byte:
		return quote(string(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", v)
	default:
		return quote(fmt.Sprintf("%v", v))
	}
}

// quote escapes backslashes and single quotes the way the server expects.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return "'" + s + "'"
}
