package report

import (
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func state(t *testing.T, title string) *pipeline.State {
	t.Helper()
	ds, err := dataset.New("orders.csv",
		dataset.NewStringColumn("region", []string{"north", "south", "north", "a|b"}),
		dataset.NewNumericColumn("amount", []float64{10, 20, 30, 5}),
	)
	require.NoError(t, err)
	tpl, err := template.Parse([]byte(`{"title": "`+title+`", "layout": [
	  {"id": "total", "type": "kpi", "title": "Total", "value_field": "amount"},
	  {"id": "mix", "type": "bar", "title": "Mix", "group_field": "region", "value_field": "amount"},
	  {"id": "trend", "type": "line", "title": "Trend", "date_field": "when", "value_field": "amount"}
	]}`), "json")
	require.NoError(t, err)
	st := pipeline.Build(ds, tpl)
	st.GeneratedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st.Insights = insight.Report{Insights: []string{"Dataset has 4 rows and 2 columns.", "Total amount: 65.00"}}
	return st
}

func TestMarkdown(t *testing.T) {
	md, err := Markdown(state(t, "Sales"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Sales\n"))
	assert.Contains(t, md, "_Dataset **orders.csv** (4 rows, 2 columns)")
	assert.Contains(t, md, "generated 2024-06-01T12:00:00Z_")
	assert.Contains(t, md, "| Total | 65.00 |\n")
	assert.Contains(t, md, "### Mix (bar)\n\n| region | amount |\n|---|---|\n| north | 40 |\n| south | 20 |\n| a\\|b | 5 |\n")
	assert.Contains(t, md, "- Dataset has 4 rows and 2 columns.\n- Total amount: 65.00\n")
	assert.Contains(t, md, "| `amount` | amount |")
}

func TestMarkdownPolishedAndPlaceholder(t *testing.T) {
	st := state(t, "Sales")
	st.Insights = insight.Report{Insights: []string{"```markdown\n**Revenue** is concentrated.\n```"}, Polished: true}
	md, err := Markdown(st)
	require.NoError(t, err)
	assert.Contains(t, md, "## Insights\n\n**Revenue** is concentrated.\n")
	assert.NotContains(t, md, "```")
	// line chart with a date field that maps to a non-date column is a placeholder
	assert.Contains(t, md, "### Trend (line)")
}

func TestHTML(t *testing.T) {
	page, err := HTML(state(t, "Sales <script>alert(1)</script>"))
	require.NoError(t, err)
	out := string(page)
	assert.Contains(t, out, "<title>Sales &lt;script&gt;alert(1)&lt;/script&gt;</title>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<li>Total amount: 65.00</li>")
}

func TestChartRowsTruncated(t *testing.T) {
	vals := make([]float64, 40)
	keys := make([]string, 40)
	for i := range vals {
		vals[i] = float64(i + 1)
		keys[i] = string(rune('A'+i%26)) + string(rune('a'+i/26))
	}
	ds, err := dataset.New("wide", dataset.NewStringColumn("k", keys), dataset.NewNumericColumn("v", vals))
	require.NoError(t, err)
	tpl := &template.Template{Title: "Wide"}
	c, err := template.Parse([]byte(`{"layout":[{"id":"p","type":"pie","group_field":"k","value_field":"v"}]}`), "json")
	require.NoError(t, err)
	tpl.Layout = c.Layout
	st := pipeline.Build(ds, tpl)
	b := chartBindings(st.Charts[0])
	assert.Len(t, b["points"], MaxPoints)
	assert.Equal(t, 15, b["more"])
}

func TestCleanMarkdown(t *testing.T) {
	assert.Equal(t, "hi", CleanMarkdown("```md\nhi\n```"))
	assert.Equal(t, "plain", CleanMarkdown("  plain \n"))
	assert.Equal(t, "```", CleanMarkdown("```"))
}
