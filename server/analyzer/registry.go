package analyzer

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

//go:embed templates/*.yaml
var builtin embed.FS

var ErrUnknownExercise = errors.New("unknown exercise")

// Registry holds the exercise templates available to sessions. Templates
// are immutable once loaded; Reload swaps the whole set.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	dir       string
	logger    *zap.Logger
}

// NewRegistry loads the built-in templates, then the YAML files in dir
// (if any), which override built-ins with the same id.
func NewRegistry(dir string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{dir: dir, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Reload() error {
	templates, err := loadFS(builtin, "templates")
	if err != nil {
		return fmt.Errorf("built-in templates: %w", err)
	}

	if r.dir != "" {
		custom, err := loadFS(os.DirFS(r.dir), ".")
		if err != nil {
			return fmt.Errorf("templates in %s: %w", r.dir, err)
		}
		for id, t := range custom {
			templates[id] = t
		}
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()

	r.logger.Info("Exercise templates loaded",
		zap.Int("count", len(templates)),
		zap.String("dir", r.dir))
	return nil
}

func (r *Registry) Get(id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExercise, id)
	}
	return t, nil
}

// List returns the templates sorted by id.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func loadFS(fsys fs.FS, dir string) (map[string]*Template, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	templates := make(map[string]*Template)
	var errs error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		t, err := ParseTemplate(data)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if _, dup := templates[t.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w: duplicate id %q", name, ErrInvalidTemplate, t.ID))
			continue
		}
		templates[t.ID] = t
	}
	return templates, errs
}
