package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// Registry holds the templates of one directory plus the built-in default.
// It is safe for concurrent use; Watch keeps it in sync with the directory.
type Registry struct {
	dir string

	mu        sync.RWMutex
	templates map[string]*Template
	errs      map[string]error
}

// NewRegistry loads every template file in dir. A missing directory yields only the default.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the watched directory.
func (r *Registry) Dir() string { return r.dir }

// Reload rescans the directory. Files that fail to parse are skipped and reported by Errors.
func (r *Registry) Reload() error {
	templates := map[string]*Template{DefaultName: Default()}
	errs := map[string]error{}
	if r.dir != "" {
		entries, err := os.ReadDir(r.dir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read templates dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || !IsTemplateFile(e.Name()) {
				continue
			}
			t, err := LoadFile(filepath.Join(r.dir, e.Name()))
			if err != nil {
				errs[e.Name()] = err
				continue
			}
			templates[t.Name] = t
		}
	}
	r.mu.Lock()
	r.templates = templates
	r.errs = errs
	r.mu.Unlock()
	return nil
}

// Get returns a template by name.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

// Names lists template names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.templates))
	for n := range r.templates {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Errors returns parse failures from the last reload, keyed by file name.
func (r *Registry) Errors() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.errs))
	for k, v := range r.errs {
		out[k] = v
	}
	return out
}

// Watch reloads the registry whenever a template file in the directory changes.
// Bursts of events are coalesced by debounce. It returns once the watcher is armed.
func (r *Registry) Watch(ctx context.Context, debounce time.Duration) error {
	if r.dir == "" {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir templates dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !IsTemplateFile(evt.Name) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if err := r.Reload(); err != nil {
					logger.Warn("template reload failed", "dir", r.dir, "error", err)
					continue
				}
				logger.Info("templates reloaded", "dir", r.dir, "count", len(r.Names()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("template watcher error", "error", err)
			}
		}
	}()
	return nil
}
