package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/askmesh/askmesh/internal/nl2query"
)

type Reason string

const (
	ReasonConnection  Reason = "connection"
	ReasonOperation   Reason = "operation"
	ReasonUnsupported Reason = "unsupported"
)

// ErrNoQuery is returned when an engine is handed the no-query sentinel.
var ErrNoQuery = errors.New("no query to execute")

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Empty returns a zero-row result with no columns.
func Empty() Result {
	return Result{Columns: []string{}, Rows: [][]any{}}
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

// FiniteCell renders NaN and infinite floats as the strings "NaN", "+Inf" and
// "-Inf". JSON has no encoding for them, so rows never carry them as numbers.
func FiniteCell(value any) any {
	var f float64
	switch typed := value.(type) {
	case float64:
		f = typed
	case float32:
		f = float64(typed)
	default:
		return value
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return value
}

type Engine interface {
	Name() string
	Execute(ctx context.Context, q nl2query.Query) (Result, error)
	Ping(ctx context.Context) error
}

type ExecutionError struct {
	Reason Reason
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed (%s): %v", e.Reason, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func ConnectionError(err error) error {
	return &ExecutionError{Reason: ReasonConnection, Err: err}
}

func OperationError(err error) error {
	return &ExecutionError{Reason: ReasonOperation, Err: err}
}

func UnsupportedError(q nl2query.Query, engine string) error {
	kind := nl2query.KindNone
	if q != nil {
		kind = q.Kind()
	}
	return &ExecutionError{Reason: ReasonUnsupported, Err: fmt.Errorf("%s engine cannot run %s queries", engine, kind)}
}

// FailureReason reports the execution failure reason of err, or "" when err is
// not an ExecutionError.
func FailureReason(err error) Reason {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Reason
	}
	return ""
}

// Limit truncates the result to at most limit rows; limit <= 0 keeps all rows.
func Limit(result Result, limit int) Result {
	if limit > 0 && len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
	}
	return result
}
