// Package postgres provides the PostgreSQL backend, built on lib/pq.
package postgres

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/lib/pq"

	"github.com/syssam/dbquery"
	"github.com/syssam/dbquery/dialect"
	dsql "github.com/syssam/dbquery/dialect/sql"
)

func init() {
	dialect.Register(dialect.Postgres, Open)
}

// Open returns a PostgreSQL driver for the given connection string or DSN.
func Open(dsn string) (dialect.Driver, error) {
	return dsql.NewDriver(dialect.Postgres, "postgres", dsn,
		dsql.WithOperational(isOperational),
		dsql.WithFormatter(format),
	), nil
}

// isOperational classifies server-reported SQLSTATE codes that indicate a
// connection-level failure. Client-side transport failures never reach this
// point; the shared driver classifies those.
func isOperational(err error) bool {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return false
	}
	switch {
	case pe.Code.Class() == "08": // connection exception
		return true
	case pe.Code == "57P01", pe.Code == "57P02", pe.Code == "57P03": // shutdown, crash, cannot connect now
		return true
	case pe.Code == "53300": // too many connections
		return true
	}
	return false
}

// format substitutes $n placeholders with quoted literals, approximating the
// statement as the server would execute it.
func format(query string, args []any) (string, error) {
	var b []byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch != '$' {
			b = append(b, ch)
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 { // bare $, not a placeholder
			b = append(b, ch)
			continue
		}
		n, _ := strconv.Atoi(query[i+1 : j])
		if n < 1 || n > len(args) {
			return "", fmt.Errorf("postgres: placeholder $%d out of range for %d parameters", n, len(args))
		}
		b = append(b, Literal(args[n-1])...)
		i = j - 1
	}
	return string(b), nil
}

// Literal renders a parameter value as a PostgreSQL literal.
func Literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return pq.QuoteLiteral(v)
	case []byte:
		return pq.QuoteLiteral(string(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", v)
	default:
		return pq.QuoteLiteral(fmt.Sprintf("%v", v))
	}
}

// validSequenceRe matches sequence identifiers, optionally schema-qualified.
var validSequenceRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// NextVal returns a SelectOne yielding the next value of the named sequence.
func NextVal(db *dbquery.DB, sequence string) (*dbquery.SelectOne, error) {
	if sequence == "" || len(sequence) > 128 || !validSequenceRe.MatchString(sequence) {
		return nil, fmt.Errorf("postgres: invalid sequence name %q", sequence)
	}
	return db.SelectOne(fmt.Sprintf("SELECT nextval('%s')", sequence), nil), nil
}
