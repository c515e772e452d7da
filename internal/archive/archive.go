package archive

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/query"
	"github.com/askmesh/askmesh/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

var ErrRunNotFound = errors.New("archived run not found")

type Archive struct {
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func New(store storage.ObjectStore, logger *slog.Logger) (*Archive, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Archive{store: store, logger: logger, now: time.Now}, nil
}

func (a *Archive) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

// Save writes the run under its dated key. Failures are logged and counted
// and the returned key is empty; callers never fail a request because of it.
func (a *Archive) Save(ctx context.Context, run Run) string {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = a.now().UTC()
	}
	key, err := a.save(ctx, run)
	if err != nil {
		observability.IncrementArchiveFailures()
		a.logger.Warn("archive run failed", slog.String("run_id", run.RunID), slog.Any("error", err))
		return ""
	}
	a.logger.Debug("archived run", slog.String("run_id", run.RunID), slog.String("key", key), slog.Int("rows", len(run.Result.Rows)))
	return key
}

func (a *Archive) save(ctx context.Context, run Run) (string, error) {
	key, err := storage.BuildRunPath(run.RunID)
	if err != nil {
		return "", err
	}
	encoded, err := EncodeRunToParquet(run)
	if err != nil {
		return "", err
	}
	if _, err := a.store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
		ContentType: parquetContentType,
		Metadata: map[string]string{
			"run-id":     run.RunID,
			"query-kind": queryKind(run.Query),
			"row-count":  strconv.FormatInt(encoded.RecordCount, 10),
		},
	}); err != nil {
		return "", err
	}
	return key, nil
}

// Stored is an archived run read back from the object store.
type Stored struct {
	RunID     string
	Question  string
	QueryKind string
	QueryText string
	CreatedAt time.Time
	Result    query.Result
}

// Load fetches the run's parquet file and reads it back through DuckDB.
func (a *Archive) Load(ctx context.Context, runID string) (Stored, error) {
	key, err := storage.BuildRunPath(runID)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: %v", ErrRunNotFound, err)
	}
	reader, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Stored{}, ErrRunNotFound
		}
		return Stored{}, fmt.Errorf("get archived run %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	start := time.Now()
	workDir, err := os.MkdirTemp("", "askmesh-run-")
	if err != nil {
		return Stored{}, fmt.Errorf("create archive temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath := filepath.Join(workDir, "run.parquet")
	if err := writeFile(localPath, reader); err != nil {
		return Stored{}, fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}

	stored, err := readParquet(ctx, localPath)
	if err != nil {
		return Stored{}, err
	}
	stored.Result.Duration = time.Since(start)
	return stored, nil
}

func readParquet(ctx context.Context, localPath string) (Stored, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return Stored{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	sqlText := fmt.Sprintf(`SELECT run_id, question, query_kind, query_text, columns_json, row_json, created_at_unix_ms FROM read_parquet(%s) ORDER BY row_index`, quoteString(localPath))
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Stored{}, fmt.Errorf("read archived parquet: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stored Stored
	stored.Result = query.Empty()
	for rows.Next() {
		var columnsJSON, rowJSON string
		var createdAtUnixMs int64
		if err := rows.Scan(&stored.RunID, &stored.Question, &stored.QueryKind, &stored.QueryText, &columnsJSON, &rowJSON, &createdAtUnixMs); err != nil {
			return Stored{}, fmt.Errorf("scan archived row: %w", err)
		}
		if len(stored.Result.Columns) == 0 {
			if err := json.Unmarshal([]byte(columnsJSON), &stored.Result.Columns); err != nil {
				return Stored{}, fmt.Errorf("decode archived columns: %w", err)
			}
			stored.CreatedAt = time.UnixMilli(createdAtUnixMs).UTC()
		}
		var values []any
		if err := json.Unmarshal([]byte(rowJSON), &values); err != nil {
			return Stored{}, fmt.Errorf("decode archived row: %w", err)
		}
		stored.Result.Rows = append(stored.Result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Stored{}, fmt.Errorf("iterate archived rows: %w", err)
	}
	if stored.RunID == "" {
		return Stored{}, ErrRunNotFound
	}
	return stored, nil
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return nil
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
