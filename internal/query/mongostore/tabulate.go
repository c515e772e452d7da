package mongostore

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/askmesh/askmesh/internal/query"
)

// Tabulate flattens documents into a uniform table. Columns are the union of
// top-level keys with _id first and the rest in first-seen order; a document
// missing a column gets nil in that cell.
func Tabulate(docs []bson.D) query.Result {
	index := map[string]int{}
	columns := make([]string, 0)
	hasID := false
	for _, doc := range docs {
		for _, elem := range doc {
			if elem.Key == "_id" {
				hasID = true
				continue
			}
			if _, ok := index[elem.Key]; !ok {
				index[elem.Key] = len(columns)
				columns = append(columns, elem.Key)
			}
		}
	}
	if hasID {
		columns = append([]string{"_id"}, columns...)
		for key := range index {
			index[key]++
		}
		index["_id"] = 0
	}

	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		row := make([]any, len(columns))
		for _, elem := range doc {
			row[index[elem.Key]] = cellValue(elem.Value)
		}
		rows = append(rows, row)
	}
	return query.Result{Columns: columns, Rows: rows}
}

func cellValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case bson.ObjectID:
		return typed.Hex()
	case bson.DateTime:
		return typed.Time().UTC().Format(time.RFC3339)
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	case bson.Decimal128:
		return typed.String()
	case bson.Null, bson.Undefined:
		return nil
	case float64:
		return query.FiniteCell(typed)
	case string, bool, int32, int64, int:
		return typed
	default:
		return extJSON(typed)
	}
}

// extJSON renders any bson value as relaxed Extended JSON. The value is wrapped
// in a one-field document because only documents can be marshaled top-level.
func extJSON(value any) string {
	out, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: value}}, false, false)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	text := strings.TrimPrefix(string(out), `{"v":`)
	return strings.TrimSuffix(text, "}")
}
