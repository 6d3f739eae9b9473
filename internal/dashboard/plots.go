package dashboard

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/schema"
	"github.com/KaramelBytes/insighto-cli/internal/template"
)

func scatterFigure(ds *dataset.Dataset, c template.Component, m schema.Mapping) *Figure {
	x, ok := resolveColumn(ds, c, m, "x_field")
	if !ok {
		return nil
	}
	y, ok := resolveColumn(ds, c, m, "y_field")
	if !ok || y.Kind != dataset.KindNumeric {
		return nil
	}
	color, hasColor := resolveColumn(ds, c, m, "color_field")
	size, hasSize := resolveColumn(ds, c, m, "size_field")
	if hasSize && size.Kind != dataset.KindNumeric {
		hasSize = false
	}

	bySeries := map[string][]Point{}
	var names []string
	for i := 0; i < y.Len(); i++ {
		yv, ok := y.Float(i)
		if !ok || x.Missing(i) {
			continue
		}
		p := Point{Value: yv}
		if xv, ok := x.Float(i); ok {
			p.X = ptr(xv)
		} else {
			p.Label = x.Label(i)
		}
		if hasSize {
			if sv, ok := size.Float(i); ok {
				p.Size = ptr(sv)
			}
		}
		name := y.Name
		if hasColor {
			if color.Missing(i) {
				continue
			}
			name = color.Label(i)
		}
		if _, seen := bySeries[name]; !seen {
			names = append(names, name)
		}
		bySeries[name] = append(bySeries[name], p)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	fig := &Figure{XAxis: x.Name, YAxis: y.Name, ShowLegend: hasColor}
	for i, n := range names {
		fig.Series = append(fig.Series, Series{Name: n, Color: colorFor(i), Data: bySeries[n]})
	}
	return fig
}

func histogramFigure(ds *dataset.Dataset, c template.Component, m schema.Mapping) *Figure {
	col, ok := resolveColumn(ds, c, m, "x_field")
	if !ok {
		col, ok = resolveColumn(ds, c, m, "value_field")
	}
	if !ok || col.Kind != dataset.KindNumeric {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < col.Len(); i++ {
		if v, ok := col.Float(i); ok {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return nil
	}
	bins := min(c.Int("bins", DefaultBins), MaxBins)
	edges := binEdges(lo, hi, bins)

	color, hasColor := resolveColumn(ds, c, m, "color_field")
	counts := map[string][]float64{}
	var names []string
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Float(i)
		if !ok {
			continue
		}
		name := col.Name
		if hasColor {
			if color.Missing(i) {
				continue
			}
			name = color.Label(i)
		}
		if _, seen := counts[name]; !seen {
			counts[name] = make([]float64, bins)
			names = append(names, name)
		}
		counts[name][binIndex(v, edges)]++
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	fig := &Figure{XAxis: col.Name, YAxis: "count", Bins: edges, ShowLegend: hasColor}
	for si, n := range names {
		pts := make([]Point, bins)
		for b := 0; b < bins; b++ {
			pts[b] = Point{
				Label: fmt.Sprintf("[%.4g, %.4g)", edges[b], edges[b+1]),
				X:     ptr(edges[b]),
				Value: counts[n][b],
			}
		}
		fig.Series = append(fig.Series, Series{Name: n, Color: colorFor(si), Data: pts})
	}
	return fig
}

// binEdges splits [lo, hi] into equal-width bins. A degenerate range is widened by 0.5 on each side.
func binEdges(lo, hi float64, bins int) []float64 {
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi
	return edges
}

// binIndex places v in its bin; the last bin is closed on the right.
func binIndex(v float64, edges []float64) int {
	bins := len(edges) - 1
	width := edges[1] - edges[0]
	i := int((v - edges[0]) / width)
	if i < 0 {
		i = 0
	}
	if i >= bins {
		i = bins - 1
	}
	return i
}

func heatmapFigure(ds *dataset.Dataset, c template.Component, m schema.Mapping) *Figure {
	x, ok := resolveColumn(ds, c, m, "x_field")
	if !ok {
		return nil
	}
	y, ok := resolveColumn(ds, c, m, "y_field")
	if !ok {
		return nil
	}
	val, ok := resolveColumn(ds, c, m, "value_field")
	if !ok || val.Kind != dataset.KindNumeric {
		return nil
	}
	xs := groupKeys(x)
	ys := groupKeys(y)
	if len(xs) == 0 || len(ys) == 0 {
		return nil
	}
	xi := indexKeys(xs)
	yi := indexKeys(ys)
	z := make([][]float64, len(ys))
	for r := range z {
		z[r] = make([]float64, len(xs))
	}
	for i := 0; i < val.Len(); i++ {
		v, ok := val.Float(i)
		if !ok || x.Missing(i) || y.Missing(i) {
			continue
		}
		z[yi[y.Label(i)]][xi[x.Label(i)]] += v
	}
	for r := range z {
		for col := range z[r] {
			z[r][col] = RoundTo2(z[r][col])
		}
	}
	return &Figure{
		XAxis:  x.Name,
		YAxis:  y.Name,
		Series: []Series{},
		Grid:   &Grid{X: xs, Y: ys, Z: z},
	}
}

// groupKeys lists distinct non-missing labels in natural ascending order.
func groupKeys(c *dataset.Column) []string {
	gs := dataset.GroupSum(c, nil, false)
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Key
	}
	return out
}

func indexKeys(keys []string) map[string]int {
	out := make(map[string]int, len(keys))
	for i, k := range keys {
		out[k] = i
	}
	return out
}
