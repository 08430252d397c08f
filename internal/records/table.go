package records

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Table is one entry of the closed set of tables the gateway may touch.
type Table struct {
	Name  string
	Label string
}

// Tables lists every manageable table in display order.
var Tables = []Table{
	{Name: "employee", Label: "Employees"},
	{Name: "customer", Label: "Customers"},
	{Name: "product", Label: "Products"},
	{Name: "supplier", Label: "Suppliers"},
	{Name: "orders", Label: "Orders"},
	{Name: "order_item", Label: "Order Items"},
	{Name: "payment", Label: "Payments"},
}

var tablesByKey = func() map[string]Table {
	m := make(map[string]Table, len(Tables))
	for _, t := range Tables {
		m[nameKey(t.Name)] = t
	}
	return m
}()

// LookupTable resolves a user supplied name against the allow-list. Matching ignores
// case, underscores and dashes so "OrderItem" and "order-item" both resolve.
func LookupTable(name string) (Table, error) {
	if t, ok := tablesByKey[nameKey(name)]; ok {
		return t, nil
	}
	return Table{}, fmt.Errorf("%w: table %q", ErrNotFound, name)
}

// Ident returns the quoted SQL identifier for the table.
func (t Table) Ident() string {
	return pgx.Identifier{t.Name}.Sanitize()
}

// ExportFile is the file name written by CSV exports.
func (t Table) ExportFile() string {
	return t.Name + "_data.csv"
}

func nameKey(name string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(name)))
}
