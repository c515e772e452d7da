package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/askmesh/askmesh/internal/nl2query"
	"github.com/askmesh/askmesh/internal/query"
)

// Run is one archived ask: the question, the executed query and its rows.
type Run struct {
	RunID     string
	Question  string
	Query     nl2query.Query
	Result    query.Result
	CreatedAt time.Time
}

type EncodeResult struct {
	Data        []byte
	RecordCount int64
}

// parquetRow holds one result row. Values and column names are JSON arrays so
// heterogeneous result shapes share a single file schema.
type parquetRow struct {
	RunID           string `parquet:"run_id"`
	Question        string `parquet:"question"`
	QueryKind       string `parquet:"query_kind"`
	QueryText       string `parquet:"query_text"`
	RowIndex        int64  `parquet:"row_index"`
	ColumnsJSON     string `parquet:"columns_json"`
	RowJSON         string `parquet:"row_json"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
}

func EncodeRunToParquet(run Run) (EncodeResult, error) {
	if run.RunID == "" {
		return EncodeResult{}, fmt.Errorf("run id is required")
	}
	if len(run.Result.Rows) == 0 {
		return EncodeResult{}, fmt.Errorf("run %s has no rows to archive", run.RunID)
	}
	columns, err := json.Marshal(run.Result.Columns)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("encode columns: %w", err)
	}
	kind := queryKind(run.Query)
	queryText := nl2query.Display(run.Query)

	rows := make([]parquetRow, 0, len(run.Result.Rows))
	for index, values := range run.Result.Rows {
		encoded, err := json.Marshal(values)
		if err != nil {
			return EncodeResult{}, fmt.Errorf("encode row %d: %w", index, err)
		}
		rows = append(rows, parquetRow{
			RunID:           run.RunID,
			Question:        run.Question,
			QueryKind:       kind,
			QueryText:       queryText,
			RowIndex:        int64(index),
			ColumnsJSON:     string(columns),
			RowJSON:         string(encoded),
			CreatedAtUnixMs: run.CreatedAt.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return EncodeResult{Data: buf.Bytes(), RecordCount: int64(len(rows))}, nil
}

func queryKind(q nl2query.Query) string {
	if q == nil {
		return string(nl2query.KindNone)
	}
	return string(q.Kind())
}
