// Package pipeline runs the dashboard stages over one dataset and template:
// role inference, field mapping, KPI and chart generation, then insights.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/dashboard"
	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/schema"
	"github.com/KaramelBytes/insighto-cli/internal/template"
)

// State is everything a run produced. Dataset and Template are the inputs and
// are not serialized.
type State struct {
	Dataset  *dataset.Dataset   `json:"-"`
	Template *template.Template `json:"-"`

	DatasetName  string            `json:"dataset"`
	Fingerprint  string            `json:"fingerprint"`
	Rows         int               `json:"rows"`
	Columns      int               `json:"columns"`
	TemplateName string            `json:"template"`
	Title        string            `json:"title"`
	Roles        schema.Roles      `json:"roles"`
	Mapping      schema.Mapping    `json:"mapping"`
	Params       insight.Params    `json:"params"`
	KPIs         []dashboard.KPI   `json:"kpis"`
	Charts       []dashboard.Chart `json:"charts"`
	Insights     insight.Report    `json:"insights"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Cached       bool              `json:"cached,omitempty"`
}

// Options controls the insight stage. Empty Params fields are picked from the mapping.
type Options struct {
	Params  insight.Params
	Insight insight.Options
	// SkipInsights stops after charts.
	SkipInsights bool
}

// Runner executes pipelines, optionally through a cache.
type Runner struct {
	Cache Cache
	TTL   time.Duration
}

// Run executes every stage. It only fails on missing inputs; the stages
// themselves degrade to placeholders. Polished runs bypass the cache.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, tpl *template.Template, opt Options) (*State, error) {
	if ds == nil {
		return nil, errors.New("pipeline: dataset is nil")
	}
	if tpl == nil {
		return nil, errors.New("pipeline: template is nil")
	}
	useCache := r != nil && r.Cache != nil && opt.Insight.Polisher == nil
	var key string
	if useCache {
		key = CacheKey(ds, tpl, opt)
		st, ok, err := r.Cache.Get(ctx, key)
		if err != nil {
			logger.Warn("cache read failed", "error", err.Error())
		} else if ok {
			logger.Debug("pipeline cache hit", "key", key)
			st.Dataset, st.Template, st.Cached = ds, tpl, true
			return st, nil
		}
	}

	st := Build(ds, tpl)
	st.Params = SelectParams(st, opt.Params)
	if !opt.SkipInsights {
		st.Insights = insight.Generate(ctx, ds, st.Params, opt.Insight)
	}

	if useCache {
		if err := r.Cache.Set(ctx, key, st, r.TTL); err != nil {
			logger.Warn("cache write failed", "error", err.Error())
		}
	}
	return st, nil
}

// Build runs the deterministic stages: roles, mapping, KPIs and charts.
func Build(ds *dataset.Dataset, tpl *template.Template) *State {
	st := &State{
		Dataset:      ds,
		Template:     tpl,
		DatasetName:  ds.Name,
		Fingerprint:  ds.Fingerprint(),
		Rows:         ds.Rows(),
		Columns:      ds.NumColumns(),
		TemplateName: tpl.Name,
		Title:        tpl.Title,
		GeneratedAt:  time.Now().UTC(),
	}
	st.Roles = schema.InferRoles(ds)
	st.Mapping = schema.MapTemplateFields(tpl, st.Roles)
	st.KPIs = []dashboard.KPI{}
	st.Charts = []dashboard.Chart{}
	for _, c := range tpl.Layout {
		if strings.EqualFold(c.Type, dashboard.KindKPI) {
			st.KPIs = append(st.KPIs, dashboard.GenerateKPI(ds, c, st.Mapping))
			continue
		}
		st.Charts = append(st.Charts, dashboard.GenerateChart(ds, c, st.Mapping))
	}
	return st
}

// SelectParams fills empty fields of given from the mapped template: the first
// numeric value_field, date_field and group_field, falling back to the first
// column with the matching role.
func SelectParams(st *State, given insight.Params) insight.Params {
	p := given
	for _, c := range st.Template.Layout {
		if p.Target == "" {
			if col, ok := st.Mapping.Resolve(c, "value_field"); ok {
				if role, _ := st.Roles.Get(col); role == schema.RoleNumeric {
					p.Target = col
				}
			}
		}
		if p.Date == "" {
			if col, ok := st.Mapping.Resolve(c, "date_field"); ok {
				p.Date = col
			}
		}
		if p.Category == "" {
			if col, ok := st.Mapping.Resolve(c, "group_field"); ok {
				p.Category = col
			}
		}
	}
	if p.Target == "" {
		p.Target, _ = st.Roles.First(schema.RoleNumeric)
	}
	if p.Date == "" {
		p.Date, _ = st.Roles.First(schema.RoleDatetime)
	}
	if p.Category == "" {
		p.Category, _ = st.Roles.First(schema.RoleCategorical)
	}
	return p
}
