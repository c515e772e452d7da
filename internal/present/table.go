package present

import (
	"fmt"
	"strconv"

	"github.com/askmesh/askmesh/internal/query"
)

// TableRows stringifies the result for terminal output. The first row is the
// header.
func TableRows(result query.Result) [][]string {
	rows := make([][]string, 0, len(result.Rows)+1)
	rows = append(rows, append([]string(nil), result.Columns...))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i := range cells {
			cells[i] = formatCell(cell(row, i))
		}
		rows = append(rows, cells)
	}
	return rows
}

func formatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	default:
		return fmt.Sprint(typed)
	}
}
