package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-records/internal/platform/db"
)

// Action selects the mutation performed before listing.
type Action string

const (
	ActionList   Action = ""
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction maps a submitted action value. An empty value lists without mutating.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionList, ActionAdd, ActionUpdate, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// Recorder receives mutation outcomes.
type Recorder interface {
	RecordMutation(table, action, outcome string)
}

// Gateway performs table-driven mutations and listings for allow-listed tables.
type Gateway struct {
	db      db.DBTX
	catalog *Catalog
	logger  *slog.Logger
	metrics Recorder
}

// NewGateway constructs a Gateway. metrics may be nil.
func NewGateway(conn db.DBTX, logger *slog.Logger, metrics Recorder) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{db: conn, catalog: NewCatalog(conn), logger: logger, metrics: metrics}
}

// Catalog exposes the schema catalog used by the gateway.
func (g *Gateway) Catalog() *Catalog {
	return g.catalog
}

// Handle applies action to table using form values keyed by column name (see formValue),
// then returns every row of the table. Absent or empty values are written as NULL; everything else is
// bound as text and left to the store to coerce or reject.
func (g *Gateway) Handle(ctx context.Context, table Table, action Action, form map[string]string) (RowSet, error) {
	fields, err := g.catalog.Columns(ctx, table)
	if err != nil {
		return RowSet{}, err
	}
	if action != ActionList {
		if err := g.mutate(ctx, table, action, fields, form); err != nil {
			return RowSet{}, err
		}
	}
	return g.list(ctx, table, fields)
}

// List returns every row of table.
func (g *Gateway) List(ctx context.Context, table Table) (RowSet, error) {
	return g.Handle(ctx, table, ActionList, nil)
}

// Count returns the number of rows in table.
func (g *Gateway) Count(ctx context.Context, table Table) (int64, error) {
	var n int64
	if err := g.db.QueryRow(ctx, "SELECT count(*) FROM "+table.Ident()).Scan(&n); err != nil {
		return 0, storeError("count", table, err)
	}
	return n, nil
}

func (g *Gateway) mutate(ctx context.Context, table Table, action Action, fields []string, form map[string]string) error {
	var (
		query string
		args  []any
	)
	identity, data := fields[0], fields[1:]
	switch action {
	case ActionAdd:
		if len(data) == 0 {
			query = "INSERT INTO " + table.Ident() + " DEFAULT VALUES"
			break
		}
		query = insertSQL(table, data)
		args = formArgs(form, data)
	case ActionUpdate:
		if len(data) == 0 {
			return nil
		}
		query = updateSQL(table, identity, data)
		args = append(formArgs(form, data), formValue(form, identity))
	case ActionDelete:
		query = deleteSQL(table, identity)
		args = []any{formValue(form, identity)}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	tag, err := g.db.Exec(ctx, query, args...)
	g.record(table, action, err)
	if err != nil {
		return storeError(string(action), table, err)
	}
	g.logger.Info("record mutation",
		slog.String("table", table.Name),
		slog.String("action", string(action)),
		slog.Int64("rows", tag.RowsAffected()),
	)
	return nil
}

func (g *Gateway) list(ctx context.Context, table Table, fields []string) (RowSet, error) {
	rows, err := g.db.Query(ctx, selectSQL(table, fields))
	if err != nil {
		return RowSet{}, storeError("list", table, err)
	}
	columns, out, err := collectRows(rows)
	if err != nil {
		return RowSet{}, storeError("list", table, err)
	}
	return RowSet{Table: table, Columns: columns, Rows: out}, nil
}

func (g *Gateway) record(table Table, action Action, err error) {
	if g.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		switch kind := classify(err); {
		case errors.Is(kind, ErrRejected):
			outcome = "rejected"
		case errors.Is(kind, ErrUnavailable):
			outcome = "unavailable"
		default:
			outcome = "error"
		}
	}
	g.metrics.RecordMutation(table.Name, string(action), outcome)
}

// formValue returns the submitted value for a catalog column, or nil for NULL. Keys match
// the column exactly or, failing that, the way table names do, so "PhoneNo" and "phone-no"
// both fill phone_no.
func formValue(form map[string]string, field string) any {
	v, ok := form[field]
	if !ok {
		key := nameKey(field)
		for name, value := range form {
			if nameKey(name) == key {
				v, ok = value, true
				break
			}
		}
	}
	if !ok || v == "" {
		return nil
	}
	return v
}

func formArgs(form map[string]string, fields []string) []any {
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		args = append(args, formValue(form, f))
	}
	return args
}

func quoteAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = pgx.Identifier{f}.Sanitize()
	}
	return out
}

func placeholders(from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("$%d", from+i)
	}
	return out
}

func insertSQL(table Table, data []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.Ident(), strings.Join(quoteAll(data), ", "), strings.Join(placeholders(1, len(data)), ", "))
}

func updateSQL(table Table, identity string, data []string) string {
	sets := make([]string, len(data))
	for i, col := range quoteAll(data) {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		table.Ident(), strings.Join(sets, ", "), pgx.Identifier{identity}.Sanitize(), len(data)+1)
}

func deleteSQL(table Table, identity string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table.Ident(), pgx.Identifier{identity}.Sanitize())
}

func selectSQL(table Table, fields []string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoteAll(fields), ", "), table.Ident(), pgx.Identifier{fields[0]}.Sanitize())
}
