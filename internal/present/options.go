package present

import (
	"errors"
	"fmt"
	"strings"

	"github.com/askmesh/askmesh/internal/query"
)

type Kind string

const (
	KindBar  Kind = "bar"
	KindLine Kind = "line"
	KindPie  Kind = "pie"
)

type SortOrder string

const (
	SortDescending SortOrder = "desc"
	SortAscending  SortOrder = "asc"
)

var ErrInvalidOptions = errors.New("invalid chart options")

// Options are the user's chart choices. Empty fields mean "use the default".
type Options struct {
	X    string    `json:"x"`
	Y    string    `json:"y"`
	Kind Kind      `json:"kind"`
	Sort SortOrder `json:"sort"`
}

func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "bar", "bar chart":
		return KindBar, nil
	case "line", "line chart":
		return KindLine, nil
	case "pie", "pie chart":
		return KindPie, nil
	default:
		return "", fmt.Errorf("%w: unknown chart kind %q", ErrInvalidOptions, value)
	}
}

func ParseSortOrder(value string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "desc", "descending":
		return SortDescending, nil
	case "asc", "ascending":
		return SortAscending, nil
	default:
		return "", fmt.Errorf("%w: unknown sort order %q", ErrInvalidOptions, value)
	}
}

// Normalize canonicalizes kind and sort, filling their defaults.
func (o Options) Normalize() (Options, error) {
	kind, err := ParseKind(string(o.Kind))
	if err != nil {
		return Options{}, err
	}
	sortOrder, err := ParseSortOrder(string(o.Sort))
	if err != nil {
		return Options{}, err
	}
	o.Kind = kind
	o.Sort = sortOrder
	o.X = strings.TrimSpace(o.X)
	o.Y = strings.TrimSpace(o.Y)
	return o, nil
}

// Validate checks that explicitly chosen axes exist in the result.
func (o Options) Validate(result query.Result) error {
	normalized, err := o.Normalize()
	if err != nil {
		return err
	}
	for _, axis := range []string{normalized.X, normalized.Y} {
		if axis != "" && !hasColumn(result.Columns, axis) {
			return fmt.Errorf("%w: column %q is not in the result", ErrInvalidOptions, axis)
		}
	}
	return nil
}

// DefaultAxes picks X as the first column and Y as the first numeric column
// other than X, falling back to the second column and then the first.
func DefaultAxes(result query.Result) (x, y string) {
	if len(result.Columns) == 0 {
		return "", ""
	}
	x = result.Columns[0]
	for i, column := range result.Columns {
		if i == 0 {
			continue
		}
		if isNumericColumn(result, i) {
			return x, column
		}
	}
	if len(result.Columns) > 1 {
		return x, result.Columns[1]
	}
	return x, x
}

// Reconcile re-derives each axis that is unset or no longer present in the
// result, keeping the choices that still apply.
func Reconcile(opts Options, result query.Result) Options {
	normalized, err := opts.Normalize()
	if err != nil {
		normalized = Options{Kind: KindBar, Sort: SortDescending, X: opts.X, Y: opts.Y}
	}
	defaultX, defaultY := DefaultAxes(result)
	if normalized.X == "" || !hasColumn(result.Columns, normalized.X) {
		normalized.X = defaultX
	}
	if normalized.Y == "" || !hasColumn(result.Columns, normalized.Y) {
		normalized.Y = defaultY
	}
	return normalized
}

func hasColumn(columns []string, name string) bool {
	for _, column := range columns {
		if column == name {
			return true
		}
	}
	return false
}

func columnIndex(columns []string, name string) int {
	for i, column := range columns {
		if column == name {
			return i
		}
	}
	return -1
}

// isNumericColumn reports whether every non-null value in the column is a
// native number and at least one value is present.
func isNumericColumn(result query.Result, index int) bool {
	seen := false
	for _, row := range result.Rows {
		if index >= len(row) || row[index] == nil {
			continue
		}
		if _, ok := nativeNumber(row[index]); !ok {
			return false
		}
		seen = true
	}
	return seen
}
