package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"

	"github.com/askmesh/askmesh/internal/nl2query"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/query"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
	DriverDuckDB   = "duckdb"

	pingTimeout = 5 * time.Second
)

type Config struct {
	Driver   string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	RowLimit        int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type Store struct {
	db       *sql.DB
	driver   string
	rowLimit int
}

// Open prepares a connection pool without dialing; connectivity problems are
// reported by Ping and Execute as connection failures.
func Open(cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverMySQL
	}
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return NewWithDB(db, driver, cfg.RowLimit), nil
}

func NewWithDB(db *sql.DB, driver string, rowLimit int) *Store {
	return &Store{db: db, driver: driver, rowLimit: rowLimit}
}

// DSN returns cfg.DSN when set, otherwise builds one for the driver from the
// discrete connection settings.
func DSN(cfg Config) (string, error) {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(cfg.Host, cfg.Port, 3306)
		mc.DBName = cfg.Name
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			Host:     hostPort(cfg.Host, cfg.Port, 5432),
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=disable",
		}
		if cfg.User != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
		return u.String(), nil
	case DriverSQLite:
		if cfg.Name == "" {
			return "file::memory:?cache=shared", nil
		}
		return "file:" + cfg.Name + ".db", nil
	case DriverDuckDB:
		if cfg.Name == "" {
			return "", nil
		}
		return cfg.Name + ".duckdb", nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
}

func hostPort(host string, port, fallback int) string {
	if host == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = fallback
	}
	return net.JoinHostPort(host, fmt.Sprint(port))
}

func (s *Store) Name() string {
	return s.driver
}

// DB exposes the pool for schema migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return query.ConnectionError(fmt.Errorf("ping %s db: %w", s.driver, err))
	}
	return nil
}

func (s *Store) Execute(ctx context.Context, q nl2query.Query) (query.Result, error) {
	start := time.Now()
	result, err := s.execute(ctx, q)
	result.Duration = time.Since(start)
	observability.ObserveExecution(s.driver, result.Duration, string(query.FailureReason(err)))
	return result, err
}

func (s *Store) execute(ctx context.Context, q nl2query.Query) (query.Result, error) {
	var text string
	switch typed := q.(type) {
	case nil, nl2query.NoQuery:
		return query.Empty(), query.ErrNoQuery
	case nl2query.SQL:
		text = typed.Text
	case nl2query.FindFilter, nl2query.AggregatePipeline:
		return query.Empty(), query.UnsupportedError(q, s.driver)
	default:
		return query.Empty(), query.UnsupportedError(q, s.driver)
	}

	text = stripTrailingSemicolons(text)
	if text == "" {
		return query.Empty(), query.ErrNoQuery
	}
	if err := s.Ping(ctx); err != nil {
		return query.Empty(), err
	}

	rows, err := s.db.QueryContext(ctx, text)
	if err != nil {
		return query.Empty(), query.OperationError(fmt.Errorf("execute query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Empty(), query.OperationError(fmt.Errorf("query columns: %w", err))
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		if s.rowLimit > 0 && len(resultRows) >= s.rowLimit {
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Empty(), query.OperationError(fmt.Errorf("scan row: %w", err))
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Empty(), query.OperationError(fmt.Errorf("iterate rows: %w", err))
	}

	return query.Result{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339)
		default:
			normalized[i] = query.FiniteCell(typed)
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
