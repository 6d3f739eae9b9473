package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
	"github.com/KaramelBytes/insighto-cli/internal/report"
	"github.com/KaramelBytes/insighto-cli/internal/runs"
	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/go-chi/chi/v5"
)

type templateInfo struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Components int    `json:"components"`
}

type templatesResponse struct {
	Templates []templateInfo    `json:"templates"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// dashboardRequest is the JSON body of POST /api/dashboards.
type dashboardRequest struct {
	Source   string `json:"source"`
	Table    string `json:"table"`
	Sheet    string `json:"sheet"`
	Template string `json:"template"`
	Target   string `json:"target"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Polish   bool   `json:"polish"`
	Save     *bool  `json:"save"`
}

type dashboardResponse struct {
	ID    string          `json:"id,omitempty"`
	State *pipeline.State `json:"state"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Templates == nil {
		respondError(w, http.StatusServiceUnavailable, "template registry not configured")
		return
	}
	resp := templatesResponse{Templates: []templateInfo{}}
	for _, name := range s.cfg.Templates.Names() {
		t, err := s.cfg.Templates.Get(name)
		if err != nil {
			continue
		}
		resp.Templates = append(resp.Templates, templateInfo{Name: name, Title: t.Title, Components: len(t.Layout)})
	}
	if errs := s.cfg.Templates.Errors(); len(errs) > 0 {
		resp.Errors = make(map[string]string, len(errs))
		for file, err := range errs {
			resp.Errors[file] = err.Error()
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Templates == nil {
		respondError(w, http.StatusServiceUnavailable, "template registry not configured")
		return
	}
	var (
		req dashboardRequest
		ds  *dataset.Dataset
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, ds, err = s.readUpload(w, r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ds == nil {
			respondError(w, http.StatusUnprocessableEntity, "unsupported upload: expected .csv, .tsv or .xlsx")
			return
		}
	} else {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !remoteSource(req.Source) {
			respondError(w, http.StatusBadRequest, "source must be a database URL or s3:// URI; upload files as multipart")
			return
		}
	}

	name := req.Template
	if name == "" {
		name = template.DefaultName
	}
	tpl, err := s.cfg.Templates.Get(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if req.Polish && s.cfg.Polisher == nil {
		respondError(w, http.StatusBadRequest, "polishing is not configured on this server")
		return
	}

	if ds == nil {
		ds, err = s.cfg.Load(r.Context(), req.Source, dataset.Options{Table: req.Table, Sheet: req.Sheet})
		if err != nil {
			logger.Warn("dataset load failed", "source", dataset.Redact(req.Source), "error", err.Error())
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	opt := pipeline.Options{
		Params:  insight.Params{Target: req.Target, Date: req.Date, Category: req.Category},
		Insight: s.cfg.Insight,
	}
	if req.Polish {
		opt.Insight.Polisher = s.cfg.Polisher
	}
	st, err := s.cfg.Runner.Run(r.Context(), ds, tpl, opt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	save := req.Save == nil || *req.Save
	if !save || s.cfg.Runs == nil {
		respondJSON(w, http.StatusOK, dashboardResponse{State: st})
		return
	}
	source := ds.Name
	if req.Source != "" {
		source = dataset.Redact(req.Source)
	}
	run, err := s.cfg.Runs.Save(source, st)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, dashboardResponse{ID: run.ID, State: st})
}

// readUpload parses a multipart request whose "file" field holds the dataset.
// A nil dataset with a nil error means the file type is not supported.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (dashboardRequest, *dataset.Dataset, error) {
	var req dashboardRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)
	if err := r.ParseMultipartForm(s.cfg.MaxUpload); err != nil {
		return req, nil, fmt.Errorf("invalid upload: %w", err)
	}
	req.Template = r.FormValue("template")
	req.Target = r.FormValue("target")
	req.Date = r.FormValue("date")
	req.Category = r.FormValue("category")
	req.Sheet = r.FormValue("sheet")
	req.Polish, _ = strconv.ParseBool(r.FormValue("polish"))
	if v := r.FormValue("save"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, nil, fmt.Errorf("invalid save flag %q", v)
		}
		req.Save = &b
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return req, nil, errors.New(`missing "file" field`)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return req, nil, fmt.Errorf("read upload: %w", err)
	}
	name := filepath.Base(hdr.Filename)
	opt := dataset.Options{Sheet: req.Sheet}
	var ds *dataset.Dataset
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		ds, err = dataset.ReadCSV(name, bytes.NewReader(data), opt)
	case ".tsv", ".tab":
		opt.Delimiter = '\t'
		ds, err = dataset.ReadCSV(name, bytes.NewReader(data), opt)
	case ".xlsx":
		ds, err = dataset.ReadXLSX(name, data, opt)
	default:
		return req, nil, nil
	}
	if err != nil {
		return req, nil, fmt.Errorf("dataset: %w", err)
	}
	return req, ds, nil
}

// remoteSource reports whether src may be loaded on behalf of a client.
// Local paths and sqlite files are refused so callers cannot read the server's filesystem.
func remoteSource(src string) bool {
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "sqlite") {
		return false
	}
	return dataset.IsSQLSource(src) || strings.HasPrefix(lower, "s3://")
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Runs == nil {
		respondJSON(w, http.StatusOK, []runs.Summary{})
		return
	}
	list, err := s.cfg.Runs.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*runs.Run, bool) {
	if s.cfg.Runs == nil {
		respondError(w, http.StatusNotFound, "run history is disabled")
		return nil, false
	}
	run, err := s.cfg.Runs.Load(chi.URLParam(r, "id"))
	if errors.Is(err, runs.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return run, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.loadRun(w, r); ok {
		respondJSON(w, http.StatusOK, run)
	}
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Runs == nil {
		respondError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	err := s.cfg.Runs.Delete(chi.URLParam(r, "id"))
	if errors.Is(err, runs.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = report.FormatMarkdown
	}
	if format != report.FormatMarkdown && format != report.FormatHTML {
		respondError(w, http.StatusBadRequest, "format must be md or html")
		return
	}
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	if run.State == nil {
		respondError(w, http.StatusInternalServerError, "run has no state")
		return
	}
	if format == report.FormatHTML {
		page, err := report.HTML(run.State)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
		return
	}
	md, err := report.Markdown(run.State)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, md)
}
