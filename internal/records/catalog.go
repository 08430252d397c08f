package records

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-records/internal/platform/db"
)

const columnsQuery = `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`

// Catalog reads live column lists from the store. Results are never cached so schema
// changes show up on the next request.
type Catalog struct {
	db db.DBTX
}

// NewCatalog constructs a Catalog.
func NewCatalog(conn db.DBTX) *Catalog {
	return &Catalog{db: conn}
}

// Columns returns the table's column names in store order. The first entry is the
// identity column.
func (c *Catalog) Columns(ctx context.Context, table Table) ([]string, error) {
	rows, err := c.db.Query(ctx, columnsQuery, table.Name)
	if err != nil {
		return nil, storeError("columns", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storeError("columns", table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("columns", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %q has no columns in the store", ErrNotFound, table.Name)
	}
	return columns, nil
}
