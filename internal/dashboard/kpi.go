package dashboard

import (
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/schema"
	"github.com/KaramelBytes/insighto-cli/internal/template"
)

// Aggregations understood by KPI components; anything else is summed.
const (
	AggSum     = "sum"
	AggMean    = "mean"
	AggMeanAbs = "mean_abs"
)

// GenerateKPI aggregates the component's value_field. Unresolvable or non-numeric
// fields, and aggregates over no values, yield an "N/A" KPI.
func GenerateKPI(ds *dataset.Dataset, c template.Component, m schema.Mapping) KPI {
	title := c.Title
	if title == "" {
		title = c.String("value_field", "KPI")
	}
	k := KPI{ID: c.ID, Title: title}
	col, ok := resolveColumn(ds, c, m, "value_field")
	if !ok || col.Kind != dataset.KindNumeric {
		return k
	}

	agg := strings.ToLower(c.String("agg", AggSum))
	var sum float64
	n := 0
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Float(i)
		if !ok {
			continue
		}
		if agg == AggMeanAbs {
			v = math.Abs(v)
		}
		sum += v
		n++
	}
	var out float64
	switch agg {
	case AggMean, AggMeanAbs:
		if n == 0 {
			return k
		}
		out = sum / float64(n)
	case AggSum:
		out = sum
	default:
		logger.Debug("unknown kpi aggregation, using sum", "component", c.Scope("value_field"), "agg", agg)
		out = sum
	}
	out = RoundTo2(out)
	k.Value = &out
	return k
}

// resolveColumn finds the dataset column bound to a component field.
func resolveColumn(ds *dataset.Dataset, c template.Component, m schema.Mapping, field string) (*dataset.Column, bool) {
	name, ok := m.Resolve(c, field)
	if !ok {
		return nil, false
	}
	return ds.Column(name)
}

func formatFixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
