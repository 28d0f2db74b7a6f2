package dbquery

import (
	"strings"

	"github.com/syssam/dbquery/dialect"
)

// ToMapFormatter converts a row into a map keyed by column name. Column
// names are lower-cased. An empty row passes through unchanged. Cursors
// without column metadata cannot use it; the call fails with
// ErrMissingMetadata.
func ToMapFormatter(row dialect.Row, columns []string) (any, error) {
	if len(row) == 0 {
		return row, nil
	}
	if len(columns) == 0 {
		return nil, ErrMissingMetadata
	}
	m := make(map[string]any, len(row))
	for i, v := range row {
		if i >= len(columns) {
			break
		}
		m[strings.ToLower(columns[i])] = v
	}
	return m, nil
}
