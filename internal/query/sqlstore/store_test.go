package sqlstore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/askmesh/askmesh/internal/nl2query"
	"github.com/askmesh/askmesh/internal/query"
)

func newMockStore(t *testing.T, rowLimit int) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db, DriverMySQL, rowLimit), mock
}

func TestExecuteNormalizesRows(t *testing.T) {
	store, mock := newMockStore(t, 0)
	sold := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectPing()
	mock.ExpectQuery(`SELECT region, SUM\(quantity\) AS units, MAX\(sale_date\) AS last_sale FROM sales GROUP BY region`).
		WillReturnRows(sqlmock.NewRows([]string{"region", "units", "last_sale"}).
			AddRow([]byte("North"), int64(42), sold).
			AddRow([]byte("South"), int64(7), nil))

	result, err := store.Execute(context.Background(), nl2query.SQL{Text: "SELECT region, SUM(quantity) AS units, MAX(sale_date) AS last_sale FROM sales GROUP BY region;;"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 3 || result.Columns[1] != "units" {
		t.Fatalf("columns = %#v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != "North" {
		t.Fatalf("[]byte not converted: %#v", result.Rows[0][0])
	}
	if result.Rows[0][2] != "2024-03-01T12:00:00Z" {
		t.Fatalf("time not formatted: %#v", result.Rows[0][2])
	}
	if result.Rows[1][2] != nil {
		t.Fatalf("null = %#v", result.Rows[1][2])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteStringifiesNonFiniteFloats(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectPing()
	mock.ExpectQuery(`SELECT region, ratio FROM margins`).
		WillReturnRows(sqlmock.NewRows([]string{"region", "ratio"}).
			AddRow("North", math.Inf(1)).
			AddRow("South", 0.25))

	result, err := store.Execute(context.Background(), nl2query.SQL{Text: "SELECT region, ratio FROM margins"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0][1] != "+Inf" {
		t.Fatalf("infinite cell = %#v", result.Rows[0][1])
	}
	if result.Rows[1][1] != 0.25 {
		t.Fatalf("finite cell = %#v", result.Rows[1][1])
	}
}

func TestExecuteAppliesRowLimit(t *testing.T) {
	store, mock := newMockStore(t, 2)

	mock.ExpectPing()
	mock.ExpectQuery(`SELECT id FROM sales`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

	result, err := store.Execute(context.Background(), nl2query.SQL{Text: "SELECT id FROM sales"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(result.Rows))
	}
}

func TestExecuteConnectionFailure(t *testing.T) {
	store, mock := newMockStore(t, 0)
	mock.ExpectPing().WillReturnError(errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"))

	result, err := store.Execute(context.Background(), nl2query.SQL{Text: "SELECT 1"})

	if query.FailureReason(err) != query.ReasonConnection {
		t.Fatalf("reason = %q, err = %v", query.FailureReason(err), err)
	}
	if len(result.Rows) != 0 || result.Columns == nil {
		t.Fatalf("expected empty result, got %#v", result)
	}
}

func TestExecuteOperationFailure(t *testing.T) {
	store, mock := newMockStore(t, 0)
	mock.ExpectPing()
	mock.ExpectQuery(`SELECT nope FROM sales`).WillReturnError(errors.New("Error 1054: Unknown column 'nope'"))

	_, err := store.Execute(context.Background(), nl2query.SQL{Text: "SELECT nope FROM sales"})

	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) || execErr.Reason != query.ReasonOperation {
		t.Fatalf("expected operation error, got %v", err)
	}
}

func TestExecuteRejectsNonSQLQueries(t *testing.T) {
	store, mock := newMockStore(t, 0)

	_, err := store.Execute(context.Background(), nl2query.NoQuery{})
	if !errors.Is(err, query.ErrNoQuery) {
		t.Fatalf("NoQuery error = %v", err)
	}
	_, err = store.Execute(context.Background(), nl2query.FindFilter{Filter: bson.D{}})
	if query.FailureReason(err) != query.ReasonUnsupported {
		t.Fatalf("find error = %v", err)
	}
	_, err = store.Execute(context.Background(), nl2query.SQL{Text: " ; "})
	if !errors.Is(err, query.ErrNoQuery) {
		t.Fatalf("blank sql error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no database calls expected: %v", err)
	}
}

func TestDSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "mysql defaults",
			cfg:  Config{Driver: "mysql", Host: "localhost", Port: 3306, User: "mysqluser", Password: "mysqlpassword", Name: "mcp_test"},
			want: "mysqluser:mysqlpassword@tcp(localhost:3306)/mcp_test?parseTime=true",
		},
		{
			name: "postgres",
			cfg:  Config{Driver: "pgx", Host: "db", Port: 5432, User: "askmesh", Password: "secret", Name: "askmesh"},
			want: "postgres://askmesh:secret@db:5432/askmesh?sslmode=disable",
		},
		{name: "sqlite file", cfg: Config{Driver: "sqlite", Name: "mcp_test"}, want: "file:mcp_test.db"},
		{name: "duckdb memory", cfg: Config{Driver: "duckdb"}, want: ""},
		{name: "explicit dsn wins", cfg: Config{Driver: "pgx", DSN: "postgres://x", Host: "ignored"}, want: "postgres://x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DSN(tc.cfg)
			if err != nil {
				t.Fatalf("DSN() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("DSN() = %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := DSN(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestStripTrailingSemicolons(t *testing.T) {
	if got := stripTrailingSemicolons(" SELECT 1 ; ; "); got != "SELECT 1" {
		t.Fatalf("stripTrailingSemicolons() = %q", got)
	}
}
