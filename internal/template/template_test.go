package template

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "title": "Ops",
  "layout": [
    {"id": "k1", "type": "kpi", "title": "Total", "value_field": "Revenue", "agg": "mean_abs"},
    {"type": "bar", "title": "By Region", "group_field": "region", "value_field": "amount", "top_n": 5, "color": null},
    {"type": "line", "date_field": "when", "value_field": "amount"}
  ]
}`

func TestParseJSON(t *testing.T) {
	tpl, err := Parse([]byte(sampleJSON), "json")
	require.NoError(t, err)
	assert.Equal(t, "Ops", tpl.Title)
	require.Len(t, tpl.Layout, 3)

	k := tpl.Layout[0]
	assert.Equal(t, "k1", k.ID)
	assert.Equal(t, "kpi", k.Type)
	assert.Equal(t, "k1.value_field", k.ScopedKey("value_field"))
	assert.Equal(t, "mean_abs", k.String("agg", "sum"))

	bar := tpl.Layout[1]
	assert.Equal(t, "By Region.group_field", bar.ScopedKey("group_field"))
	assert.Equal(t, 5, bar.Int("top_n", 10))
	assert.Equal(t, 20, bar.Int("bins", 20))
	assert.Equal(t, []string{"group_field", "title", "type", "value_field"}, bar.StringFields())

	line := tpl.Layout[2]
	assert.Equal(t, "date_field.date_field", line.ScopedKey("date_field"))
	_, ok := line.Field("group_field")
	assert.False(t, ok)
}

func TestEmptyIDScopesByTitle(t *testing.T) {
	tpl, err := Parse([]byte(`{"title":"T","layout":[{"id":"","type":"kpi","title":"Total","value_field":"x"}]}`), "json")
	require.NoError(t, err)
	c := tpl.Layout[0]
	assert.Equal(t, "", c.ID)
	assert.Equal(t, "Total.value_field", c.ScopedKey("value_field"))
}

func TestParseYAMLAndHJSON(t *testing.T) {
	y := []byte("title: Y\nlayout:\n  - id: a\n    type: pie\n    group_field: seg\n    top_n: 3\n")
	tpl, err := Parse(y, "yaml")
	require.NoError(t, err)
	require.Len(t, tpl.Layout, 1)
	assert.Equal(t, "pie", tpl.Layout[0].Type)
	assert.Equal(t, 3, tpl.Layout[0].Int("top_n", 10))

	h := []byte(`{
  # comment
  title: H
  layout: [
    {
      id: b
      type: kpi
      value_field: amt
    }
  ]
}`)
	tpl, err = Parse(h, "hjson")
	require.NoError(t, err)
	assert.Equal(t, "H", tpl.Title)
	v, ok := tpl.Layout[0].Field("value_field")
	require.True(t, ok)
	assert.Equal(t, "amt", v)
}

func TestParseRepairsSloppyJSON(t *testing.T) {
	tpl, err := Parse([]byte(`{"title": "R", "layout": [{"type": "kpi", "value_field": "x"},]}`), "json")
	require.NoError(t, err)
	assert.Len(t, tpl.Layout, 1)

	_, err = Parse([]byte(`{"title": "X", "layout": {"a": 1}}`), "json")
	require.Error(t, err)
	_, err = Parse([]byte(`title: x`), "toml")
	require.Error(t, err)
}

func TestComponentJSONRoundTripKeepsUnknownKeys(t *testing.T) {
	tpl, err := Parse([]byte(sampleJSON), "json")
	require.NoError(t, err)
	b, err := json.Marshal(tpl)
	require.NoError(t, err)
	var back Template
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "By Region", back.Layout[1].Title)
	assert.Contains(t, back.Layout[1].Params, "color")
}

func TestDefaultTemplate(t *testing.T) {
	tpl := Default()
	assert.Equal(t, DefaultName, tpl.Name)
	assert.NotEmpty(t, tpl.Layout)
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ops.json"), []byte(sampleJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("layout: [\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	r, err := NewRegistry(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops", DefaultName}, r.Names())
	assert.Contains(t, r.Errors(), "broken.yaml")

	_, err = r.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	missing, err := NewRegistry(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultName}, missing.Names())
}

func TestRegistryWatchReloads(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Watch(ctx, 20*time.Millisecond))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.json"), []byte(sampleJSON), 0o644))
	require.Eventually(t, func() bool {
		_, err := r.Get("fresh")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
}

func TestMarshalRoundTripsEveryFormat(t *testing.T) {
	src := Default()
	for _, format := range []string{"json", ".yaml", "hjson"} {
		b, err := Marshal(src, format)
		require.NoError(t, err, format)
		back, err := Parse(b, format)
		require.NoError(t, err, format)
		assert.Equal(t, src.Title, back.Title, format)
		require.Len(t, back.Layout, len(src.Layout), format)
		assert.Equal(t, "revenue_by_category", back.Layout[3].ID, format)
		assert.Equal(t, 10, back.Layout[3].Int("top_n", 0), format)
	}
	_, err := Marshal(src, "toml")
	assert.Error(t, err)
}
