package records

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customerColumns = []string{"cus_id", "name", "email", "phone_no"}

type recordedMutation struct {
	table, action, outcome string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedMutation
}

func (f *fakeRecorder) RecordMutation(table, action, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedMutation{table, action, outcome})
}

func expectColumns(mock pgxmock.PgxPoolIface, table string, columns ...string) {
	rows := pgxmock.NewRows([]string{"column_name"})
	for _, c := range columns {
		rows.AddRow(c)
	}
	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).WithArgs(table).WillReturnRows(rows)
}

func newGatewayMock(t *testing.T) (pgxmock.PgxPoolIface, *Gateway, *fakeRecorder) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	rec := &fakeRecorder{}
	return mock, NewGateway(mock, nil, rec), rec
}

func mustTable(t *testing.T, name string) Table {
	t.Helper()
	table, err := LookupTable(name)
	require.NoError(t, err)
	return table
}

func TestGatewayListEmptyTable(t *testing.T) {
	mock, gw, _ := newGatewayMock(t)
	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "cus_id", "name", "email", "phone_no" FROM "customer" ORDER BY "cus_id"`)).
		WillReturnRows(pgxmock.NewRows(customerColumns))

	rs, err := gw.Handle(context.Background(), mustTable(t, "customer"), ActionList, nil)
	require.NoError(t, err)
	assert.Equal(t, customerColumns, rs.Columns)
	assert.NotNil(t, rs.Rows)
	assert.Equal(t, 0, rs.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayAddUpdateDeleteScenario(t *testing.T) {
	mock, gw, rec := newGatewayMock(t)
	ctx := context.Background()
	customer := mustTable(t, "customer")
	listSQL := regexp.QuoteMeta(`SELECT "cus_id", "name", "email", "phone_no" FROM "customer" ORDER BY "cus_id"`)

	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "customer" ("name", "email", "phone_no") VALUES ($1, $2, $3)`)).
		WithArgs("Alice", "a@x.io", "555").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(listSQL).
		WillReturnRows(pgxmock.NewRows(customerColumns).AddRow(int32(1), "Alice", "a@x.io", "555"))

	rs, err := gw.Handle(ctx, customer, ActionAdd, map[string]string{"name": "Alice", "email": "a@x.io", "phone_no": "555"})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, Row{"1", "Alice", "a@x.io", "555"}, rs.Rows[0])

	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "customer" SET "name" = $1, "email" = $2, "phone_no" = $3 WHERE "cus_id" = $4`)).
		WithArgs("Alicia", "a@x.io", "555", "1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(listSQL).
		WillReturnRows(pgxmock.NewRows(customerColumns).AddRow(int32(1), "Alicia", "a@x.io", "555"))

	rs, err = gw.Handle(ctx, customer, ActionUpdate, map[string]string{"cus_id": "1", "name": "Alicia", "email": "a@x.io", "phone_no": "555"})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", rs.Rows[0][1])

	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "customer" WHERE "cus_id" = $1`)).
		WithArgs("1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(listSQL).
		WillReturnRows(pgxmock.NewRows(customerColumns))

	rs, err = gw.Handle(ctx, customer, ActionDelete, map[string]string{"cus_id": "1"})
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []recordedMutation{
		{"customer", "add", "ok"},
		{"customer", "update", "ok"},
		{"customer", "delete", "ok"},
	}, rec.calls)
}

func TestGatewayMatchesFormKeysLikeTableNames(t *testing.T) {
	mock, gw, _ := newGatewayMock(t)
	ctx := context.Background()
	customer := mustTable(t, "customer")
	listSQL := regexp.QuoteMeta(`SELECT "cus_id", "name", "email", "phone_no" FROM "customer" ORDER BY "cus_id"`)

	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "customer" ("name", "email", "phone_no") VALUES ($1, $2, $3)`)).
		WithArgs("Alice", "a@x.com", "123").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(listSQL).
		WillReturnRows(pgxmock.NewRows(customerColumns).AddRow(int32(1), "Alice", "a@x.com", "123"))

	_, err := gw.Handle(ctx, customer, ActionAdd, map[string]string{"Name": "Alice", "Email": "a@x.com", "PhoneNo": "123"})
	require.NoError(t, err)

	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "customer" SET "name" = $1, "email" = $2, "phone_no" = $3 WHERE "cus_id" = $4`)).
		WithArgs("Alicia", "a@x.com", "123", "1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(listSQL).
		WillReturnRows(pgxmock.NewRows(customerColumns).AddRow(int32(1), "Alicia", "a@x.com", "123"))

	_, err = gw.Handle(ctx, customer, ActionUpdate, map[string]string{"CusID": "1", "Name": "Alicia", "email": "a@x.com", "phone-no": "123"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormValuePrefersExactColumnName(t *testing.T) {
	form := map[string]string{"phone_no": "exact", "PhoneNo": "folded"}
	assert.Equal(t, "exact", formValue(form, "phone_no"))
	assert.Equal(t, "folded", formValue(map[string]string{"PhoneNo": "folded"}, "phone_no"))
	assert.Nil(t, formValue(map[string]string{"phone": "x"}, "phone_no"))
}

func TestGatewayMissingIdentityIsNoOp(t *testing.T) {
	mock, gw, rec := newGatewayMock(t)
	ctx := context.Background()
	customer := mustTable(t, "customer")
	listSQL := regexp.QuoteMeta(`SELECT "cus_id", "name", "email", "phone_no" FROM "customer" ORDER BY "cus_id"`)
	stored := func() *pgxmock.Rows {
		return pgxmock.NewRows(customerColumns).
			AddRow(int32(1), "Alice", "a@x.io", "555").
			AddRow(int32(2), "Bob", "b@x.io", "556")
	}

	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "customer" WHERE "cus_id" = $1`)).
		WithArgs("99").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery(listSQL).WillReturnRows(stored())

	rs, err := gw.Handle(ctx, customer, ActionDelete, map[string]string{"cus_id": "99"})
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())

	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "customer" SET "name" = $1, "email" = $2, "phone_no" = $3 WHERE "cus_id" = $4`)).
		WithArgs("Zed", nil, nil, "99").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(listSQL).WillReturnRows(stored())

	rs, err = gw.Handle(ctx, customer, ActionUpdate, map[string]string{"cus_id": "99", "name": "Zed"})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"1", "Alice", "a@x.io", "555"}, {"2", "Bob", "b@x.io", "556"}}, rs.Rows)

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []recordedMutation{
		{"customer", "delete", "ok"},
		{"customer", "update", "ok"},
	}, rec.calls)
}

func TestGatewayAddBindsMissingValuesAsNull(t *testing.T) {
	mock, gw, _ := newGatewayMock(t)
	expectColumns(mock, "customer", customerColumns...)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "customer" ("name", "email", "phone_no") VALUES ($1, $2, $3)`)).
		WithArgs("Bob", nil, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "cus_id", "name", "email", "phone_no" FROM "customer"`)).
		WillReturnRows(pgxmock.NewRows(customerColumns).AddRow(int32(1), "Bob", nil, nil))

	rs, err := gw.Handle(context.Background(), mustTable(t, "customer"), ActionAdd, map[string]string{"name": "Bob", "email": ""})
	require.NoError(t, err)
	assert.Equal(t, Row{"1", "Bob", "", ""}, rs.Rows[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayRejectedMutationSkipsListing(t *testing.T) {
	mock, gw, rec := newGatewayMock(t)
	expectColumns(mock, "employee", "emp_id", "name", "salary")
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "employee" ("name", "salary") VALUES ($1, $2)`)).
		WithArgs("Eve", "lots").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type double precision"})

	_, err := gw.Handle(context.Background(), mustTable(t, "employee"), ActionAdd, map[string]string{"name": "Eve", "salary": "lots"})
	require.ErrorIs(t, err, ErrRejected)
	assert.False(t, IsTransient(err))

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "add", storeErr.Op)
	assert.Equal(t, "employee", storeErr.Table)

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []recordedMutation{{"employee", "add", "rejected"}}, rec.calls)
}

func TestGatewayListFormatsTypedValues(t *testing.T) {
	mock, gw, _ := newGatewayMock(t)
	expectColumns(mock, "employee", "emp_id", "name", "salary", "join_date")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "emp_id", "name", "salary", "join_date" FROM "employee" ORDER BY "emp_id"`)).
		WillReturnRows(pgxmock.NewRows([]string{"emp_id", "name", "salary", "join_date"}).
			AddRow(int32(7), "Eve", 4200.5, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	rs, err := gw.List(context.Background(), mustTable(t, "employee"))
	require.NoError(t, err)
	assert.Equal(t, Row{"7", "Eve", "4200.5", "2024-03-01"}, rs.Rows[0])
	assert.Equal(t, "emp_id", rs.Identity())
	assert.Equal(t, []string{"name", "salary", "join_date"}, rs.DataColumns())
}

func TestGatewayCount(t *testing.T) {
	mock, gw, _ := newGatewayMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "orders"`)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := gw.Count(context.Background(), mustTable(t, "orders"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"": ActionList, "add": ActionAdd, " Update ": ActionUpdate, "DELETE": ActionDelete} {
		got, err := ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseAction("truncate")
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"undefined table", &pgconn.PgError{Code: "42P01"}, ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrRejected},
		{"fk violation", &pgconn.PgError{Code: "23503"}, ErrRejected},
		{"bad date", &pgconn.PgError{Code: "22007"}, ErrRejected},
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, ErrUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrUnavailable},
		{"query canceled", &pgconn.PgError{Code: "57014"}, ErrUnavailable},
		{"deadline", context.DeadlineExceeded, ErrUnavailable},
		{"other", errors.New("boom"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err))
		})
	}
}

func TestLookupTable(t *testing.T) {
	for _, name := range []string{"order_item", "OrderItem", "order-item", " ORDER_ITEM "} {
		table, err := LookupTable(name)
		require.NoError(t, err, name)
		assert.Equal(t, "order_item", table.Name)
	}
	_, err := LookupTable("pg_user")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "customer_data.csv", mustTable(t, "customer").ExportFile())
	assert.Equal(t, `"orders"`, mustTable(t, "orders").Ident())
}
