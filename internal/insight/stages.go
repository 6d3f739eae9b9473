package insight

import (
	"math"
	"sort"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
)

// Internal markers for stages that could not run.
const (
	ErrNoColumn         = "column not found"
	ErrInsufficientData = "insufficient data"
)

// Share is one category's slice of the total.
type Share struct {
	Category string  `json:"category"`
	Percent  float64 `json:"percent"`
}

// Concentration holds the top category shares or the reason there are none.
type Concentration struct {
	Column string  `json:"column"`
	Shares []Share `json:"shares,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// CategoryConcentration computes the share of |value| (or of row counts when
// valueCol is empty or not numeric) held by the top n categories.
func CategoryConcentration(ds *dataset.Dataset, categoryCol, valueCol string, n int) *Concentration {
	out := &Concentration{Column: categoryCol}
	cat, ok := ds.Column(categoryCol)
	if !ok {
		out.Error = ErrNoColumn
		return out
	}
	var groups []dataset.Group
	if val, ok := numericColumn(ds, valueCol); ok {
		groups = dataset.GroupSum(cat, val, true)
	} else {
		groups = dataset.GroupSum(cat, nil, false)
	}
	var total float64
	for _, g := range groups {
		total += g.Sum
	}
	if len(groups) == 0 || total == 0 {
		out.Error = ErrInsufficientData
		return out
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Sum > groups[j].Sum })
	if len(groups) > n {
		groups = groups[:n]
	}
	// Shares are kept in hundredths of a percent so rounding cannot push the total past 100.
	var used int64
	for _, g := range groups {
		c := int64(math.Round(g.Sum / total * 100 * 100))
		if used+c > 10000 {
			c = 10000 - used
		}
		used += c
		out.Shares = append(out.Shares, Share{Category: g.Key, Percent: float64(c) / 100})
	}
	return out
}

// Trend labels.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
)

// Seasonality is the monthly series and its rolling trend.
type Seasonality struct {
	Monthly   []MonthlyPoint `json:"monthly,omitempty"`
	Rolling   []float64      `json:"rolling,omitempty"`
	Trend     string         `json:"trend,omitempty"`
	LastValue float64        `json:"last_value"`
	Error     string         `json:"error,omitempty"`
}

// MonthlyPoint is a month-end total.
type MonthlyPoint struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

const rollingWindow = 3

// MonthlySeasonality sums valueCol per calendar month and compares the latest
// 3-month rolling mean against the first complete one. A tie reads as decreasing.
func MonthlySeasonality(ds *dataset.Dataset, dateCol, valueCol string) *Seasonality {
	out := &Seasonality{}
	dates, ok := ds.Column(dateCol)
	if !ok {
		out.Error = ErrNoColumn
		return out
	}
	vals, ok := numericColumn(ds, valueCol)
	if !ok {
		out.Error = ErrNoColumn
		return out
	}
	buckets := dataset.Resample(dates, vals, dataset.Monthly)
	if len(buckets) < rollingWindow {
		out.Error = ErrInsufficientData
		return out
	}
	for _, b := range buckets {
		out.Monthly = append(out.Monthly, MonthlyPoint{Month: b.End.Format("2006-01"), Value: b.Sum})
	}
	for i := rollingWindow - 1; i < len(buckets); i++ {
		var s float64
		for j := i - rollingWindow + 1; j <= i; j++ {
			s += buckets[j].Sum
		}
		out.Rolling = append(out.Rolling, s/rollingWindow)
	}
	out.Trend = TrendDecreasing
	if out.Rolling[len(out.Rolling)-1] > out.Rolling[0] {
		out.Trend = TrendIncreasing
	}
	out.LastValue = buckets[len(buckets)-1].Sum
	return out
}

// Correlation is the absolute Pearson coefficient of a column pair.
type Correlation struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
}

// Correlations returns numeric column pairs with |r| >= threshold, strongest first.
// Pairs keep column order on ties.
func Correlations(ds *dataset.Dataset, threshold float64) []Correlation {
	names := ds.NumericColumns()
	cols := make([][]float64, len(names))
	for i, n := range names {
		c, _ := ds.Column(n)
		cols[i] = c.Floats()
	}
	var out []Correlation
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			r, ok := pearson(cols[i], cols[j])
			if !ok {
				continue
			}
			if r = math.Abs(r); r >= threshold {
				out = append(out, Correlation{A: names[i], B: names[j], R: r})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].R > out[j].R })
	return out
}

// Driver is a numeric column's signed correlation with the target.
type Driver struct {
	Column string  `json:"column"`
	R      float64 `json:"r"`
}

// Drivers ranks the other numeric columns by |corr| with target and keeps the top n.
func Drivers(ds *dataset.Dataset, target string, n int) []Driver {
	t, ok := numericColumn(ds, target)
	if !ok {
		return nil
	}
	tv := t.Floats()
	var out []Driver
	for _, name := range ds.NumericColumns() {
		if name == target {
			continue
		}
		c, _ := ds.Column(name)
		if r, ok := pearson(tv, c.Floats()); ok {
			out = append(out, Driver{Column: name, R: r})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].R) > math.Abs(out[j].R) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
