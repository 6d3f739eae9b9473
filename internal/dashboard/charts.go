package dashboard

import (
	"sort"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/schema"
	"github.com/KaramelBytes/insighto-cli/internal/template"
)

// Defaults for chart parameters.
const (
	DefaultTopN = 10
	DefaultBins = 20
	// MaxBins caps histogram resolution; larger requests are clamped.
	MaxBins = 1000
)

// GenerateChart builds the figure for a chart component. It never fails: missing
// fields give a "No data available" placeholder and unknown types an
// "Unsupported chart type" placeholder.
func GenerateChart(ds *dataset.Dataset, c template.Component, m schema.Mapping) Chart {
	kind, ok := ParseKind(c.Type)
	if !ok {
		return placeholder(c, unsupportedAnnotation+c.Type)
	}
	var fig *Figure
	switch kind {
	case KindLine:
		fig = lineFigure(ds, c, m)
	case KindBar:
		fig = barFigure(ds, c, m)
	case KindPie:
		fig = pieFigure(ds, c, m)
	case KindScatter:
		fig = scatterFigure(ds, c, m)
	case KindHistogram:
		fig = histogramFigure(ds, c, m)
	case KindHeatmap:
		fig = heatmapFigure(ds, c, m)
	}
	if fig == nil {
		return placeholder(c, NoDataAnnotation)
	}
	fig.Title = c.Title
	return Chart{ID: c.ID, Type: string(kind), Figure: *fig}
}

func placeholder(c template.Component, note string) Chart {
	return Chart{
		ID:   c.ID,
		Type: c.Type,
		Figure: Figure{
			Title:      c.Title,
			Series:     []Series{},
			Annotation: note,
		},
	}
}

func lineFigure(ds *dataset.Dataset, c template.Component, m schema.Mapping) *Figure {
	dates, ok := resolveColumn(ds, c, m, "date_field")
	if !ok {
		return nil
	}
	values, ok := resolveColumn(ds, c, m, "value_field")
	if !ok || values.Kind != dataset.KindNumeric {
		return nil
	}
	freq := dataset.Monthly
	if raw, set := c.Field("time_granularity"); set {
		if f, ok := dataset.ParseFreq(raw); ok {
			freq = f
		} else {
			logger.Warn("unknown time granularity, using monthly", "component", c.Scope("time_granularity"), "time_granularity", raw)
		}
	}
	buckets := dataset.Resample(dates, values, freq)
	if len(buckets) == 0 {
		return nil
	}
	pts := make([]Point, len(buckets))
	for i, b := range buckets {
		pts[i] = Point{Label: b.End.Format("2006-01-02"), Value: RoundTo2(b.Sum)}
	}
	return &Figure{
		XAxis:  dates.Name,
		YAxis:  values.Name,
		Series: []Series{{Name: values.Name, Color: colorFor(0), Data: pts}},
	}
}

func groupedAbs(ds *dataset.Dataset, c template.Component, m schema.Mapping) (*dataset.Column, *dataset.Column, []dataset.Group) {
	groups, ok := resolveColumn(ds, c, m, "group_field")
	if !ok {
		return nil, nil, nil
	}
	values, ok := resolveColumn(ds, c, m, "value_field")
	if !ok || values.Kind != dataset.KindNumeric {
		return nil, nil, nil
	}
	return groups, values, dataset.GroupSum(groups, values, true)
}

func barFigure(ds *dataset.Dataset, c template.Component, m schema.Mapping) *Figure {
	groups, values, sums := groupedAbs(ds, c, m)
	if len(sums) == 0 {
		return nil
	}
	sort.SliceStable(sums, func(i, j int) bool { return sums[i].Sum > sums[j].Sum })
	if n := c.Int("top_n", DefaultTopN); len(sums) > n {
		sums = sums[:n]
	}
	return &Figure{
		XAxis:  groups.Name,
		YAxis:  values.Name,
		Series: []Series{{Name: values.Name, Color: colorFor(0), Data: groupPoints(sums)}},
	}
}

func pieFigure(ds *dataset.Dataset, c template.Component, m schema.Mapping) *Figure {
	groups, values, sums := groupedAbs(ds, c, m)
	if len(sums) == 0 {
		return nil
	}
	return &Figure{
		XAxis:      groups.Name,
		YAxis:      values.Name,
		Series:     []Series{{Name: values.Name, Data: groupPoints(sums)}},
		ShowLegend: true,
	}
}

func groupPoints(gs []dataset.Group) []Point {
	pts := make([]Point, len(gs))
	for i, g := range gs {
		pts[i] = Point{Label: g.Key, Value: RoundTo2(g.Sum)}
	}
	return pts
}
