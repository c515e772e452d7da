package present

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/askmesh/askmesh/internal/query"
)

// Warning is a non-fatal presentation problem; the chart is still produced.
type Warning struct {
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (w Warning) Error() string {
	return w.Message
}

type Chart struct {
	NoData  bool    `json:"no_data"`
	Options Options `json:"options"`
	Figure  *Figure `json:"figure,omitempty"`
}

// Figure is a plotly.js figure: {data, layout}.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type         string   `json:"type"`
	Name         string   `json:"name,omitempty"`
	X            []any    `json:"x,omitempty"`
	Y            []any    `json:"y,omitempty"`
	Labels       []any    `json:"labels,omitempty"`
	Values       []any    `json:"values,omitempty"`
	Text         []string `json:"text,omitempty"`
	TextPosition string   `json:"textposition,omitempty"`
	TextInfo     string   `json:"textinfo,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	Hole         float64  `json:"hole,omitempty"`
}

type Layout struct {
	Title     Title  `json:"title"`
	ClickMode string `json:"clickmode"`
	XAxis     *Axis  `json:"xaxis,omitempty"`
	YAxis     *Axis  `json:"yaxis,omitempty"`
}

type Title struct {
	Text string `json:"text"`
}

type Axis struct {
	Title Title `json:"title"`
}

type point struct {
	x     any
	y     float64
	valid bool
}

// Render builds the chart for result. Options are reconciled against the
// result first, so stale axis choices never fail rendering.
func Render(result query.Result, opts Options) (Chart, []Warning) {
	opts = Reconcile(opts, result)
	if len(result.Rows) == 0 {
		return Chart{NoData: true, Options: opts}, nil
	}

	xIndex := columnIndex(result.Columns, opts.X)
	yIndex := columnIndex(result.Columns, opts.Y)
	points, failed := coerceColumn(result, xIndex, yIndex)

	var warnings []Warning
	if failed > 0 {
		warnings = append(warnings, Warning{
			Column:  opts.Y,
			Message: fmt.Sprintf("could not convert %d value(s) of Y-axis column %q to numbers; the chart may not render or sort as expected", failed, opts.Y),
		})
	}
	sortPoints(points, opts.Sort)

	figure := &Figure{Layout: Layout{
		Title:     Title{Text: fmt.Sprintf("%s by %s", opts.Y, opts.X)},
		ClickMode: "event+select",
	}}
	switch opts.Kind {
	case KindLine:
		figure.Data = []Trace{lineTrace(points)}
		figure.Layout.XAxis = &Axis{Title: Title{Text: opts.X}}
		figure.Layout.YAxis = &Axis{Title: Title{Text: opts.Y}}
	case KindPie:
		figure.Data = []Trace{pieTrace(points)}
	default:
		figure.Data = barTraces(points)
		figure.Layout.XAxis = &Axis{Title: Title{Text: opts.X}}
		figure.Layout.YAxis = &Axis{Title: Title{Text: opts.Y}}
	}
	return Chart{Options: opts, Figure: figure}, warnings
}

func coerceColumn(result query.Result, xIndex, yIndex int) ([]point, int) {
	points := make([]point, 0, len(result.Rows))
	failed := 0
	for _, row := range result.Rows {
		p := point{x: cell(row, xIndex)}
		raw := cell(row, yIndex)
		if raw != nil {
			value, ok := toFloat(raw)
			if ok {
				p.y, p.valid = value, true
			} else {
				failed++
			}
		}
		points = append(points, p)
	}
	return points, failed
}

// sortPoints orders by Y, keeping ties in result order. Points without a
// numeric Y go last in either direction.
func sortPoints(points []point, order SortOrder) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.valid != b.valid {
			return a.valid
		}
		if !a.valid {
			return false
		}
		if order == SortAscending {
			return a.y < b.y
		}
		return a.y > b.y
	})
}

func barTraces(points []point) []Trace {
	var traces []Trace
	byCategory := map[string]int{}
	for _, p := range points {
		category := formatCell(p.x)
		index, ok := byCategory[category]
		if !ok {
			index = len(traces)
			byCategory[category] = index
			traces = append(traces, Trace{Type: "bar", Name: category, TextPosition: "outside"})
		}
		traces[index].X = append(traces[index].X, p.x)
		traces[index].Y = append(traces[index].Y, yValue(p))
		traces[index].Text = append(traces[index].Text, yText(p))
	}
	return traces
}

func lineTrace(points []point) Trace {
	trace := Trace{Type: "scatter", Mode: "lines+markers+text", TextPosition: "top center"}
	for _, p := range points {
		trace.X = append(trace.X, p.x)
		trace.Y = append(trace.Y, yValue(p))
		trace.Text = append(trace.Text, yText(p))
	}
	return trace
}

func pieTrace(points []point) Trace {
	trace := Trace{Type: "pie", Hole: 0.3, TextInfo: "percent+label+value"}
	for _, p := range points {
		trace.Labels = append(trace.Labels, formatCell(p.x))
		trace.Values = append(trace.Values, yValue(p))
	}
	return trace
}

func yValue(p point) any {
	if !p.valid {
		return nil
	}
	return p.y
}

func yText(p point) string {
	if !p.valid {
		return ""
	}
	return strconv.FormatFloat(p.y, 'f', -1, 64)
}

func cell(row []any, index int) any {
	if index < 0 || index >= len(row) {
		return nil
	}
	return row[index]
}

func nativeNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

func toFloat(value any) (float64, bool) {
	if number, ok := nativeNumber(value); ok {
		return number, isFinite(number)
	}
	switch typed := value.(type) {
	case bool:
		if typed {
			return 1, true
		}
		return 0, true
	case string:
		number, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil || !isFinite(number) {
			return 0, false
		}
		return number, true
	default:
		return 0, false
	}
}

func isFinite(number float64) bool {
	return !math.IsNaN(number) && !math.IsInf(number, 0)
}
