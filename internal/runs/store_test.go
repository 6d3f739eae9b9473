package runs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/dashboard"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
	"github.com/KaramelBytes/insighto-cli/internal/runs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func state(title string) *pipeline.State {
	v := 42.0
	return &pipeline.State{
		DatasetName:  "sales.csv",
		TemplateName: "sample_dashboard",
		Title:        title,
		Rows:         3,
		KPIs:         []dashboard.KPI{{ID: "k", Title: "Total", Value: &v}, {ID: "n", Title: "Missing"}},
		Insights:     insight.Report{Insights: []string{"Dataset has 3 rows and 2 columns."}},
	}
}

func TestSaveLoadDelete(t *testing.T) {
	store := runs.NewStore(filepath.Join(t.TempDir(), "runs"))
	r, err := store.Save("sales.csv", state("Sales"))
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)
	assert.FileExists(t, filepath.Join(store.Dir(), r.ID, "run.json"))

	back, err := store.Load(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sales", back.State.Title)
	require.NotNil(t, back.State.KPIs[0].Value)
	assert.Equal(t, 42.0, *back.State.KPIs[0].Value)
	assert.Nil(t, back.State.KPIs[1].Value)

	require.NoError(t, store.Delete(r.ID))
	_, err = store.Load(r.ID)
	assert.True(t, errors.Is(err, runs.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(r.ID), runs.ErrNotFound))
}

func TestListNewestFirst(t *testing.T) {
	store := runs.NewStore(t.TempDir())
	empty, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, empty)

	a, err := store.Save("a.csv", state("A"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	b, err := store.Save("b.csv", state("B"))
	require.NoError(t, err)

	// stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "not-a-run"), 0o755))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
	assert.Equal(t, "B", list[0].Title)
	assert.Equal(t, 1, list[0].Insights)
}

func TestRejectsPathLikeIDs(t *testing.T) {
	store := runs.NewStore(t.TempDir())
	_, err := store.Load("../etc")
	assert.True(t, errors.Is(err, runs.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(".."), runs.ErrNotFound))
	_, err = store.Save("x", nil)
	assert.Error(t, err)
}
