// Package report renders a pipeline state as Markdown or HTML.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/dashboard"
	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
	"github.com/osteele/liquid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Formats accepted by Render.
const (
	FormatJSON     = "json"
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// MaxPoints caps the rows printed per chart table.
const MaxPoints = 25

//go:embed templates/report.md.liquid
var markdownSource string

var (
	engine   = newEngine()
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

func newEngine() *liquid.Engine {
	e := liquid.NewEngine()
	// cell makes a value safe inside a Markdown table cell.
	e.RegisterFilter("cell", func(v any) string {
		s := strings.ReplaceAll(fmt.Sprint(v), "|", `\|`)
		return strings.Join(strings.Fields(s), " ")
	})
	return e
}

// Markdown renders st with the built-in report template.
func Markdown(st *pipeline.State) (string, error) {
	tpl, err := engine.ParseString(markdownSource)
	if err != nil {
		return "", fmt.Errorf("parse report template: %w", err)
	}
	out, err := tpl.RenderString(bindings(st))
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}

// HTML renders the Markdown report into a standalone page. Raw HTML in
// dataset values is escaped, not passed through.
func HTML(st *pipeline.State) ([]byte, error) {
	md, err := Markdown(st)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	title := st.Title
	if title == "" {
		title = "Dashboard"
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("<style>body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem}table{border-collapse:collapse}td,th{border:1px solid #ddd;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

func bindings(st *pipeline.State) map[string]any {
	kpis := make([]map[string]any, 0, len(st.KPIs))
	for _, k := range st.KPIs {
		kpis = append(kpis, map[string]any{"title": k.Title, "value": k.Display()})
	}
	charts := make([]map[string]any, 0, len(st.Charts))
	for _, c := range st.Charts {
		charts = append(charts, chartBindings(c))
	}
	keys := make([]string, 0, len(st.Mapping))
	for k := range st.Mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mapping := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		mapping = append(mapping, map[string]any{"key": k, "column": st.Mapping[k]})
	}
	polished := ""
	if st.Insights.Polished && len(st.Insights.Insights) > 0 {
		polished = CleanMarkdown(st.Insights.Insights[0])
	}
	return map[string]any{
		"title":         st.Title,
		"dataset":       st.DatasetName,
		"template":      st.TemplateName,
		"rows":          st.Rows,
		"columns":       st.Columns,
		"generated_at":  st.GeneratedAt.UTC().Format(time.RFC3339),
		"kpis":          kpis,
		"charts":        charts,
		"insights":      st.Insights.Insights,
		"polished":      polished != "",
		"polished_text": polished,
		"mapping":       mapping,
	}
}

type row struct {
	label string
	value float64
}

func chartBindings(c dashboard.Chart) map[string]any {
	f := c.Figure
	var rows []row
	switch {
	case f.Grid != nil:
		for yi, y := range f.Grid.Y {
			for xi, x := range f.Grid.X {
				if v := f.Grid.Z[yi][xi]; v != 0 {
					rows = append(rows, row{label: y + " / " + x, value: v})
				}
			}
		}
	default:
		for _, s := range f.Series {
			for _, p := range s.Data {
				label := p.Label
				if label == "" && p.X != nil {
					label = strconv.FormatFloat(*p.X, 'f', -1, 64)
				}
				if len(f.Series) > 1 {
					label = s.Name + ": " + label
				}
				rows = append(rows, row{label: label, value: p.Value})
			}
		}
	}
	more := 0
	if len(rows) > MaxPoints {
		more = len(rows) - MaxPoints
		rows = rows[:MaxPoints]
	}
	points := make([]map[string]any, len(rows))
	for i, r := range rows {
		points[i] = map[string]any{"label": r.label, "value": strconv.FormatFloat(r.value, 'f', -1, 64)}
	}
	x, y := f.XAxis, f.YAxis
	if x == "" {
		x = "label"
	}
	if y == "" {
		y = "value"
	}
	return map[string]any{
		"id":     c.ID,
		"type":   c.Type,
		"title":  f.Title,
		"note":   f.Annotation,
		"x":      x,
		"y":      y,
		"points": points,
		"more":   more,
	}
}

// CleanMarkdown strips an outer code fence that text generators often wrap replies in.
func CleanMarkdown(input string) string {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimPrefix(s, "```markdown")
		s = strings.TrimPrefix(s, "```md")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
