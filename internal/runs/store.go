// Package runs persists pipeline results as <dir>/<id>/run.json.
package runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
	"github.com/KaramelBytes/insighto-cli/internal/utils"
	"github.com/google/uuid"
)

const runFileName = "run.json"

// ErrNotFound is returned for unknown or malformed run IDs.
var ErrNotFound = errors.New("run not found")

// Store is a directory of saved runs.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on first save.
func NewStore(dir string) *Store { return &Store{dir: dir} }

// Dir returns the store root.
func (s *Store) Dir() string { return s.dir }

// Save assigns an ID to st and writes it atomically.
func (s *Store) Save(source string, st *pipeline.State) (*Run, error) {
	if st == nil {
		return nil, errors.New("runs: state is nil")
	}
	r := &Run{ID: uuid.NewString(), Source: source, CreatedAt: time.Now().UTC(), State: st}
	data, err := utils.PrettyJSON(r)
	if err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(s.path(r.ID), data, 0o644); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return r, nil
}

// Load reads a run by ID.
func (s *Store) Load(id string) (*Run, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	var r Run
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse run %s: %w", id, err)
	}
	return &r, nil
}

// List returns summaries, newest first. Unreadable entries are skipped.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := []Summary{}
	for _, e := range entries {
		if !e.IsDir() || !validID(e.Name()) {
			continue
		}
		r, err := s.Load(e.Name())
		if err != nil {
			logger.Warn("skipping unreadable run", "id", e.Name(), "error", err.Error())
			continue
		}
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes a run and its directory.
func (s *Store) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	dir := filepath.Join(s.dir, id)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return os.RemoveAll(dir)
}

func (s *Store) path(id string) string { return filepath.Join(s.dir, id, runFileName) }

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
