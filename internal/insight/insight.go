// Package insight turns a dataset into an ordered list of plain-language
// findings: summary, concentration, seasonality, correlations, drivers,
// anomalies and recommendations.
package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/logger"
)

// Params names the columns the analyses focus on. Empty names skip the stages
// that need them.
type Params struct {
	Target   string `json:"target,omitempty"`
	Date     string `json:"date,omitempty"`
	Category string `json:"category,omitempty"`
}

// Anomaly detection methods.
const (
	MethodZScore = "zscore"
	MethodRobust = "robust"
)

// Options tunes the analyses.
type Options struct {
	CorrThreshold   float64
	TopCorrelations int
	TopDrivers      int
	TopCategories   int
	AnomalyZ        float64
	AnomalyMethod   string
	// Polisher, when set, rewrites the bullets into a single narrative.
	Polisher Polisher
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		CorrThreshold:   0.35,
		TopCorrelations: 5,
		TopDrivers:      3,
		TopCategories:   3,
		AnomalyZ:        3.0,
		AnomalyMethod:   MethodZScore,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CorrThreshold <= 0 {
		o.CorrThreshold = d.CorrThreshold
	}
	if o.TopCorrelations <= 0 {
		o.TopCorrelations = d.TopCorrelations
	}
	if o.TopDrivers <= 0 {
		o.TopDrivers = d.TopDrivers
	}
	if o.TopCategories <= 0 {
		o.TopCategories = d.TopCategories
	}
	if o.AnomalyZ <= 0 {
		o.AnomalyZ = d.AnomalyZ
	}
	if o.AnomalyMethod == "" {
		o.AnomalyMethod = d.AnomalyMethod
	}
	return o
}

// Polisher rewrites a prompt into finished prose.
type Polisher interface {
	Polish(ctx context.Context, prompt string) (string, error)
}

// Report is the structured result behind the sentences.
type Report struct {
	Insights      []string       `json:"insights"`
	Concentration *Concentration `json:"concentration,omitempty"`
	Seasonality   *Seasonality   `json:"seasonality,omitempty"`
	Correlations  []Correlation  `json:"correlations,omitempty"`
	Drivers       []Driver       `json:"drivers,omitempty"`
	Anomalies     []Anomaly      `json:"anomalies,omitempty"`
	Polished      bool           `json:"polished"`
}

// Fixed recommendation sentences.
const (
	recPrefix      = "Recommendation: "
	recCategory    = "Investigate top categories for customer retention & targeted promotions."
	recTrend       = "If trend increasing, consider scaling operations or liquidity management for expected growth."
	recCorrelation = "Explore causality for correlated fields; consider regression modelling for forecasting."
	recAnomaly     = "Review anomalous transactions for fraud or data entry issues."
)

// Generate runs every stage in order. Stages lacking data add nothing; only
// polishing talks to the outside world and its failure is reported inline.
func Generate(ctx context.Context, ds *dataset.Dataset, p Params, opt Options) Report {
	opt = opt.withDefaults()
	var r Report
	add := func(s string) { r.Insights = append(r.Insights, s) }

	add(fmt.Sprintf("Dataset has %d rows and %d columns.", ds.Rows(), ds.NumColumns()))
	target, hasTarget := numericColumn(ds, p.Target)
	if hasTarget {
		var total float64
		for _, v := range present(target.Floats()) {
			total += v
		}
		add(fmt.Sprintf("Total %s: %s", target.Name, formatThousands(total)))
	}

	_, hasCategory := ds.Column(p.Category)
	if p.Category != "" {
		r.Concentration = CategoryConcentration(ds, p.Category, p.Target, opt.TopCategories)
		for _, s := range r.Concentration.Shares {
			add(fmt.Sprintf("Top category '%s' contributes %s%% of total by value.", s.Category, formatShare(s.Percent)))
		}
	}

	if p.Date != "" && p.Target != "" {
		r.Seasonality = MonthlySeasonality(ds, p.Date, p.Target)
		if r.Seasonality.Trend != "" {
			add(fmt.Sprintf("3-month rolling trend appears %s; last month net: %.2f.", r.Seasonality.Trend, r.Seasonality.LastValue))
		}
	}

	r.Correlations = Correlations(ds, opt.CorrThreshold)
	for i, c := range r.Correlations {
		if i == opt.TopCorrelations {
			break
		}
		add(fmt.Sprintf("Strong correlation (%.2f) between %s and %s.", c.R, c.A, c.B))
	}

	if hasTarget {
		r.Drivers = Drivers(ds, target.Name, opt.TopDrivers)
		for _, d := range r.Drivers {
			add(fmt.Sprintf("Potential driver: %s (corr=%.2f) with target %s.", d.Column, d.R, target.Name))
		}
		r.Anomalies = DetectAnomalies(target.Floats(), opt.AnomalyZ, opt.AnomalyMethod)
		if len(r.Anomalies) > 0 {
			add(fmt.Sprintf("Detected %d anomalies in %s (z-score >= %g).", len(r.Anomalies), target.Name, opt.AnomalyZ))
		}
	}

	if hasCategory {
		add(recPrefix + recCategory)
	}
	if r.Seasonality != nil && r.Seasonality.Trend == TrendIncreasing {
		add(recPrefix + recTrend)
	}
	if len(r.Correlations) > 0 {
		add(recPrefix + recCorrelation)
	}
	if len(r.Anomalies) > 0 {
		add(recPrefix + recAnomaly)
	}

	if opt.Polisher != nil {
		polished, err := opt.Polisher.Polish(ctx, BuildPrompt(r.Insights))
		if err != nil {
			logger.Warn("insight polishing failed", "error", err.Error())
			add("LLM polishing failed: " + err.Error())
		} else {
			r.Insights = []string{strings.TrimSpace(polished)}
			r.Polished = true
		}
	}
	return r
}

// BuildPrompt embeds the bullets in the polishing instruction.
func BuildPrompt(bullets []string) string {
	var b strings.Builder
	b.WriteString("You are an analytics assistant. Given the following bulleted insights, produce 5 concise business-ready insights and 3 action recommendations in clear language.\n")
	b.WriteString("Insights bullets:\n")
	for _, s := range bullets {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}

// BasicKPI summarizes every numeric column as one sentence.
func BasicKPI(ds *dataset.Dataset) []string {
	var out []string
	for _, name := range ds.NumericColumns() {
		col, _ := ds.Column(name)
		vals := present(col.Floats())
		var sum float64
		lo, hi := 0.0, 0.0
		for i, v := range vals {
			sum += v
			if i == 0 || v < lo {
				lo = v
			}
			if i == 0 || v > hi {
				hi = v
			}
		}
		avg := mean(vals)
		if len(vals) == 0 {
			lo, hi = avg, avg
		}
		out = append(out, fmt.Sprintf("%s: sum=%.2f, avg=%.2f, min=%.2f, max=%.2f", name, sum, avg, lo, hi))
	}
	return out
}

func numericColumn(ds *dataset.Dataset, name string) (*dataset.Column, bool) {
	if name == "" {
		return nil, false
	}
	c, ok := ds.Column(name)
	if !ok || c.Kind != dataset.KindNumeric {
		return nil, false
	}
	return c, true
}
