package dashboard

import (
	"encoding/json"
	"math"
	"strings"
)

// Kind enumerates the supported chart types.
type Kind string

const (
	KindLine      Kind = "line"
	KindBar       Kind = "bar"
	KindPie       Kind = "pie"
	KindScatter   Kind = "scatter"
	KindHistogram Kind = "histogram"
	KindHeatmap   Kind = "heatmap"
)

// KindKPI is the component type handled by GenerateKPI rather than GenerateChart.
const KindKPI = "kpi"

// Kinds lists every chart kind with a generator.
var Kinds = []Kind{KindLine, KindBar, KindPie, KindScatter, KindHistogram, KindHeatmap}

// ParseKind maps a component type to a chart kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Annotations carried by placeholder figures.
const (
	NoDataAnnotation      = "No data available"
	unsupportedAnnotation = "Unsupported chart type: "
)

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Figure is a render-ready chart description.
type Figure struct {
	Title      string    `json:"title"`
	XAxis      string    `json:"xAxis,omitempty"`
	YAxis      string    `json:"yAxis,omitempty"`
	Series     []Series  `json:"series"`
	Grid       *Grid     `json:"grid,omitempty"`
	Bins       []float64 `json:"bins,omitempty"`
	ShowLegend bool      `json:"showLegend"`
	// Annotation is set only on placeholder figures.
	Annotation string `json:"annotation,omitempty"`
}

// Series is one trace of a figure.
type Series struct {
	Name  string  `json:"name"`
	Color string  `json:"color,omitempty"`
	Data  []Point `json:"data"`
}

// Point is a single mark. Label identifies categorical or time positions; X is set for numeric axes.
type Point struct {
	Label string   `json:"label,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Value float64  `json:"value"`
	Size  *float64 `json:"size,omitempty"`
}

// Grid is a heatmap matrix: Z[row][col] for rows Y and columns X.
type Grid struct {
	X []string    `json:"x"`
	Y []string    `json:"y"`
	Z [][]float64 `json:"z"`
}

// Chart pairs the component type with its figure.
type Chart struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"chart_type"`
	Figure Figure `json:"figure"`
}

// Placeholder reports whether the chart carries no data.
func (c Chart) Placeholder() bool { return c.Figure.Annotation != "" }

// KPI is a titled scalar. A nil Value renders as "N/A".
type KPI struct {
	ID    string
	Title string
	Value *float64
}

// NA is the sentinel shown for KPIs that could not be computed.
const NA = "N/A"

// Display formats the value with two decimals, or "N/A".
func (k KPI) Display() string {
	if k.Value == nil {
		return NA
	}
	return formatFixed2(*k.Value)
}

type kpiJSON struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Value any    `json:"value"`
}

// MarshalJSON emits the value as a number or the "N/A" string.
func (k KPI) MarshalJSON() ([]byte, error) {
	var v any = NA
	if k.Value != nil {
		v = *k.Value
	}
	return json.Marshal(kpiJSON{ID: k.ID, Title: k.Title, Value: v})
}

// UnmarshalJSON accepts a number or "N/A".
func (k *KPI) UnmarshalJSON(b []byte) error {
	var raw kpiJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	k.ID, k.Title, k.Value = raw.ID, raw.Title, nil
	if f, ok := raw.Value.(float64); ok {
		k.Value = &f
	}
	return nil
}

// RoundTo2 rounds half away from zero to two decimals.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

func colorFor(i int) string { return defaultColors[i%len(defaultColors)] }

func ptr(v float64) *float64 { return &v }
