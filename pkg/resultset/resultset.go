package resultset

import (
	"database/sql"
	"time"

	"github.com/pingcap/errors"
)

// Column is one column of a result set, identified by its label and the
// declared type reported by the server.
type Column struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
}

// Row holds the values of one row, aligned to the columns of its ResultSet.
// Values are normalized at the scan boundary to string, int64, float64, bool,
// time.Time or nil.
type Row []any

// ResultSet is one tabular output emitted by a procedure invocation. A
// procedure may emit several in sequence; rows keep the server emission order.
type ResultSet struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ColumnIndex returns the position of the named column, or -1.
func (r *ResultSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ReadAll drains every result set from rows, in emission order, fully
// materializing all rows. Result sets without columns (OK packets of
// statements inside the procedure) are skipped. Caller need to close rows
// after it returns.
func ReadAll(rows *sql.Rows) ([]ResultSet, error) {
	var sets []ResultSet
	for {
		columnTypes, err := rows.ColumnTypes()
		if err != nil {
			return nil, errors.Annotatef(err, "failed to get column types of result set %d", len(sets))
		}
		if len(columnTypes) > 0 {
			set := ResultSet{Columns: make([]Column, 0, len(columnTypes))}
			for _, ct := range columnTypes {
				set.Columns = append(set.Columns, Column{
					Name:         ct.Name(),
					DeclaredType: ct.DatabaseTypeName(),
				})
			}

			dest := make([]any, len(columnTypes))
			for i := range dest {
				dest[i] = new(any)
			}
			for rows.Next() {
				if err = rows.Scan(dest...); err != nil {
					return nil, errors.Annotatef(err, "failed to scan row of result set %d", len(sets))
				}
				row := make(Row, len(dest))
				for i := range dest {
					row[i] = normalize(*(dest[i].(*any)))
				}
				set.Rows = append(set.Rows, row)
			}
			if err = rows.Err(); err != nil {
				return nil, errors.Annotatef(err, "failed to read rows of result set %d", len(sets))
			}
			sets = append(sets, set)
		}

		if !rows.NextResultSet() {
			if err = rows.Err(); err != nil {
				return nil, errors.Annotatef(err, "failed to advance to result set %d", len(sets)+1)
			}
			return sets, nil
		}
	}
}

// normalize maps driver values to the small set of types the comparator
// understands. The MySQL driver reports text protocol values as []byte.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val
	default:
		return v
	}
}
