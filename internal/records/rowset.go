package records

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// Row holds one record with every value rendered as text, in column order.
type Row []string

// ID returns the identity value, the first column.
func (r Row) ID() string {
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

// RowSet is the result of listing a table.
type RowSet struct {
	Table   Table
	Columns []string
	Rows    []Row
}

// Identity returns the identity column name.
func (rs RowSet) Identity() string {
	if len(rs.Columns) == 0 {
		return ""
	}
	return rs.Columns[0]
}

// DataColumns returns every column except the identity column.
func (rs RowSet) DataColumns() []string {
	if len(rs.Columns) < 2 {
		return nil
	}
	return rs.Columns[1:]
}

// Len reports the number of rows.
func (rs RowSet) Len() int {
	return len(rs.Rows)
}

func collectRows(rows pgx.Rows) ([]string, []Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	out := make([]Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := make(Row, len(values))
		for i, v := range values {
			row[i] = FormatValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

// FormatValue renders a decoded column value as text. Dates without a clock component
// print as YYYY-MM-DD, the same format HTML date inputs submit.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
