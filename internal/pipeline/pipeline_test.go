package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesTemplate = `{
  "title": "Sales",
  "layout": [
    {"id": "total", "type": "KPI", "title": "Total", "value_field": "Amount", "agg": "sum"},
    {"id": "trend", "type": "line", "title": "Trend", "date_field": "date", "value_field": "amount"},
    {"id": "mix", "type": "bar", "title": "Mix", "group_field": "region", "value_field": "amount"},
    {"id": "flow", "type": "sankey", "title": "Flow"}
  ]
}`

func fixture(t *testing.T) (*dataset.Dataset, *template.Template) {
	t.Helper()
	var dates []time.Time
	for m := time.January; m <= time.May; m++ {
		dates = append(dates, time.Date(2024, m, 15, 0, 0, 0, 0, time.UTC))
	}
	ds, err := dataset.New("sales",
		dataset.NewTimeColumn("date", dates),
		dataset.NewStringColumn("region", []string{"north", "south", "north", "east", "west"}),
		dataset.NewNumericColumn("amount", []float64{100, 100, 100, 100, 10000}),
		dataset.NewNumericColumn("units", []float64{1, 2, 3, 4, 5}),
	)
	require.NoError(t, err)
	tpl, err := template.Parse([]byte(salesTemplate), "json")
	require.NoError(t, err)
	tpl.Name = "sales"
	return ds, tpl
}

func TestRunProducesAllStages(t *testing.T) {
	ds, tpl := fixture(t)
	st, err := (&Runner{}).Run(context.Background(), ds, tpl, Options{})
	require.NoError(t, err)

	assert.Equal(t, "sales", st.DatasetName)
	assert.Equal(t, "Sales", st.Title)
	assert.Equal(t, 5, st.Rows)
	assert.Equal(t, "amount", st.Mapping["Amount"])

	require.Len(t, st.KPIs, 1)
	require.NotNil(t, st.KPIs[0].Value)
	assert.Equal(t, 10400.0, *st.KPIs[0].Value)

	require.Len(t, st.Charts, 3)
	assert.Equal(t, "line", st.Charts[0].Type)
	assert.Len(t, st.Charts[0].Figure.Series[0].Data, 5)
	assert.Equal(t, "Unsupported chart type: sankey", st.Charts[2].Figure.Annotation)

	assert.Equal(t, insight.Params{Target: "amount", Date: "date", Category: "region"}, st.Params)
	assert.Equal(t, "Dataset has 5 rows and 4 columns.", st.Insights.Insights[0])
	assert.Equal(t, "increasing", st.Insights.Seasonality.Trend)
}

func TestRunIsIdempotent(t *testing.T) {
	ds, tpl := fixture(t)
	a, err := (&Runner{}).Run(context.Background(), ds, tpl, Options{})
	require.NoError(t, err)
	b, err := (&Runner{}).Run(context.Background(), ds, tpl, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.KPIs, b.KPIs)
	assert.Equal(t, a.Charts, b.Charts)
	assert.Equal(t, a.Insights, b.Insights)
	assert.Equal(t, a.Mapping, b.Mapping)
}

func TestRunKeepsExplicitParams(t *testing.T) {
	ds, tpl := fixture(t)
	st, err := (&Runner{}).Run(context.Background(), ds, tpl, Options{Params: insight.Params{Target: "units"}, SkipInsights: true})
	require.NoError(t, err)
	assert.Equal(t, "units", st.Params.Target)
	assert.Equal(t, "date", st.Params.Date)
	assert.Empty(t, st.Insights.Insights)
}

func TestSelectParamsFallsBackToRoles(t *testing.T) {
	ds, err := dataset.New("d",
		dataset.NewStringColumn("segment", []string{"a", "a", "a", "a", "b"}),
		dataset.NewNumericColumn("score", []float64{1, 2, 3, 4, 5}),
		dataset.NewTimeColumn("when", []time.Time{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), {}, {}, {}, {},
		}),
	)
	require.NoError(t, err)
	st := Build(ds, &template.Template{Title: "empty"})
	assert.Equal(t, insight.Params{Target: "score", Date: "when", Category: "segment"}, SelectParams(st, insight.Params{}))
	assert.Empty(t, st.KPIs)
	assert.Empty(t, st.Charts)
}

func TestRunRejectsMissingInputs(t *testing.T) {
	ds, tpl := fixture(t)
	_, err := (&Runner{}).Run(context.Background(), nil, tpl, Options{})
	assert.Error(t, err)
	_, err = (&Runner{}).Run(context.Background(), ds, nil, Options{})
	assert.Error(t, err)
}

type failingPolisher struct{}

func (failingPolisher) Polish(context.Context, string) (string, error) {
	return "", errors.New("offline")
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer cache.Close()

	ds, tpl := fixture(t)
	r := &Runner{Cache: cache, TTL: time.Hour}

	first, err := r.Run(context.Background(), ds, tpl, Options{})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Len(t, mr.Keys(), 1)
	assert.Equal(t, time.Hour, mr.TTL(mr.Keys()[0]))

	second, err := r.Run(context.Background(), ds, tpl, Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Same(t, ds, second.Dataset)
	assert.Equal(t, first.Insights.Insights, second.Insights.Insights)
	assert.Equal(t, first.KPIs, second.KPIs)
	assert.Equal(t, first.Roles.Pairs(), second.Roles.Pairs())

	// different thresholds are a different key
	opt := Options{Insight: insight.Options{AnomalyMethod: insight.MethodRobust}}
	third, err := r.Run(context.Background(), ds, tpl, opt)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, mr.Keys(), 2)

	// polishing bypasses the cache entirely
	opt.Insight.Polisher = failingPolisher{}
	polished, err := r.Run(context.Background(), ds, tpl, opt)
	require.NoError(t, err)
	assert.False(t, polished.Cached)
	assert.Equal(t, "LLM polishing failed: offline", polished.Insights.Insights[len(polished.Insights.Insights)-1])
	assert.Len(t, mr.Keys(), 2)
}

func TestCacheUnavailableStillRuns(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer cache.Close()
	mr.Close()

	ds, tpl := fixture(t)
	st, err := (&Runner{Cache: cache}).Run(context.Background(), ds, tpl, Options{})
	require.NoError(t, err)
	assert.False(t, st.Cached)
	assert.NotEmpty(t, st.Insights.Insights)
}

func TestNewRedisCacheFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisCache(context.Background(), addr)
	assert.Error(t, err)
}
