package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/runs"
	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = `Date,Category,Revenue
2024-01-05,Books,120
2024-01-20,Games,80
2024-02-11,Books,200
2024-03-02,Music,50
2024-03-28,Games,95
`

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *runs.Store) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("layout: [unterminated"), 0o644))
	reg, err := template.NewRegistry(dir)
	require.NoError(t, err)
	store := runs.NewStore(t.TempDir())
	cfg := Config{Templates: reg, Runs: store}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), store
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/dashboards", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, v any) *http.Request {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/dashboards", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Routes(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBearerAuth(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.APIToken = "s3cret" })
	h := s.Routes()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, do(t, h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, do(t, h, req).Code)

	assert.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestTemplates(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Routes(), httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp templatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Templates, 1)
	assert.Equal(t, templateInfo{Name: template.DefaultName, Title: "Sales Overview", Components: 5}, resp.Templates[0])
	assert.Contains(t, resp.Errors, "bad.yaml")
}

func TestUploadLifecycle(t *testing.T) {
	s, store := newTestServer(t, nil)
	h := s.Routes()

	rec := do(t, h, upload(t, "sales.csv", salesCSV, map[string]string{"category": "Category"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID    string `json:"id"`
		State struct {
			DatasetName string            `json:"dataset"`
			Rows        int               `json:"rows"`
			Mapping     map[string]string `json:"mapping"`
			Params      struct {
				Target   string `json:"target"`
				Category string `json:"category"`
			} `json:"params"`
			Insights struct {
				Insights []string `json:"insights"`
			} `json:"insights"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "sales.csv", created.State.DatasetName)
	assert.Equal(t, 5, created.State.Rows)
	assert.Equal(t, "Revenue", created.State.Params.Target)
	assert.Equal(t, "Category", created.State.Params.Category)
	assert.Equal(t, "Dataset has 5 rows and 3 columns.", created.State.Insights.Insights[0])

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sales.csv", list[0].Source)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/runs/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"sales.csv"`)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/runs/"+created.ID+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Sales Overview\n"))

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/runs/"+created.ID+"/report?format=html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Sales Overview</title>")

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/runs/"+created.ID+"/report?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/runs/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/runs/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/runs/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadWithoutSave(t *testing.T) {
	s, store := newTestServer(t, nil)
	rec := do(t, s.Routes(), upload(t, "sales.csv", salesCSV, map[string]string{"save": "false"}))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.ID)
	require.NotNil(t, resp.State)
	assert.Equal(t, "sales.csv", resp.State.DatasetName)

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUploadRejections(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Routes()

	rec := do(t, h, upload(t, "notes.pdf", "%PDF", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, upload(t, "sales.csv", salesCSV, map[string]string{"template": "nope"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, upload(t, "sales.csv", salesCSV, map[string]string{"polish": "true"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "polishing is not configured")

	rec = do(t, h, upload(t, "sales.csv", salesCSV, map[string]string{"save": "maybe"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.MaxUpload = 64 })
	rec := do(t, s.Routes(), upload(t, "sales.csv", strings.Repeat(salesCSV, 10), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJSONSourceRestrictions(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) {
		c.Load = func(context.Context, string, dataset.Options) (*dataset.Dataset, error) {
			t.Fatal("loader must not be called for local sources")
			return nil, nil
		}
	})
	h := s.Routes()
	for _, src := range []string{"/etc/passwd", "data/sales.csv", "sqlite:///tmp/app.db", ""} {
		rec := do(t, h, jsonRequest(t, map[string]any{"source": src}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, src)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/dashboards", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, do(t, h, req).Code)
}

func TestJSONSourceLoads(t *testing.T) {
	var gotSrc string
	var gotOpt dataset.Options
	s, store := newTestServer(t, func(c *Config) {
		c.Load = func(_ context.Context, src string, opt dataset.Options) (*dataset.Dataset, error) {
			gotSrc, gotOpt = src, opt
			return dataset.ReadCSV("orders", strings.NewReader(salesCSV), opt)
		}
	})
	src := "postgres://analyst:pw@db.internal:5432/shop"
	rec := do(t, s.Routes(), jsonRequest(t, map[string]any{"source": src, "table": "orders"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, src, gotSrc)
	assert.Equal(t, "orders", gotOpt.Table)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "postgres://db.internal:5432/shop", list[0].Source)
}

func TestJSONSourceLoadFailure(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) {
		c.Load = func(context.Context, string, dataset.Options) (*dataset.Dataset, error) {
			return nil, errors.New("dataset: a table name is required for database sources")
		}
	})
	rec := do(t, s.Routes(), jsonRequest(t, map[string]any{"source": "s3://bucket/sales.csv"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "table name is required")
}

func TestRunsUnknownID(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Routes(), httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
