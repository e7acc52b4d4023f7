// Package project models a writing project as a tree of documents stored
// as packets on disk.
//
// A project is a directory holding a _stew.json manifest. Every document
// below it is addressed by a slash path relative to that directory, e.g.
// "/chapter1/scene2", and backed by the packet scene2 inside chapter1/.
package project

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/props"
	"github.com/starford/stew/internal/storage"
)

const (
	tagsDir      = "_tags"
	templatesDir = "_templates"
)

// Project is an opened project. It owns the property and manifest caches of
// every node it hands out.
type Project struct {
	dir      string
	cache    *props.Cache
	manifest *props.ManifestStore
}

// New returns the project rooted at dir without checking for a manifest.
func New(dir string) *Project {
	dir = filepath.Clean(dir)
	return &Project{
		dir:      dir,
		cache:    props.NewCache(),
		manifest: props.NewManifestStore(filepath.Join(dir, props.ManifestFile)),
	}
}

// Open finds the project containing dir. With search set, parent
// directories are tried until a manifest turns up; otherwise dir itself
// must hold one.
func Open(dir string, search bool) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("project: open: %w", err)
	}
	for {
		ok, err := storage.Exists(filepath.Join(abs, props.ManifestFile))
		if err != nil {
			return nil, fmt.Errorf("project: open: %w", err)
		}
		if ok {
			return New(abs), nil
		}
		parent := filepath.Dir(abs)
		if !search || parent == abs {
			return nil, apperr.New(apperr.ErrProjectNotFound, "no %s in %s", props.ManifestFile, dir)
		}
		abs = parent
	}
}

// Init creates a project at dir with manifest m (an empty one when nil).
// It refuses when dir already lies inside a project.
func Init(dir string, m *props.Manifest) (*Project, error) {
	if existing, err := Open(dir, true); err == nil {
		return nil, apperr.New(apperr.ErrAlreadyExists, "%s is already in the project at %s", dir, existing.Dir())
	} else if !errors.Is(err, apperr.ErrProjectNotFound) {
		return nil, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("project: init: %w", err)
	}
	p := New(abs)
	if m == nil {
		m = &props.Manifest{}
	}
	if err := p.manifest.Create(m); err != nil {
		return nil, err
	}
	return p, nil
}

// Dir returns the project directory.
func (p *Project) Dir() string { return p.dir }

// Root returns the root document.
func (p *Project) Root() *Root { return &Root{project: p} }

// Tags returns the tag tree stored under _tags.
func (p *Project) Tags() *Tags { return &Tags{project: p} }

// Manifest returns the cached manifest.
func (p *Project) Manifest() (*props.Manifest, error) {
	return p.manifest.Read()
}

// ClearCache drops the cached manifest and property documents so that the
// next access rereads them from disk.
func (p *Project) ClearCache() {
	p.cache.Invalidate()
	p.manifest.Invalidate()
}

// Owns reports whether n belongs to this project.
func (p *Project) Owns(n Node) bool {
	return n.Project() != nil && n.Project().dir == p.dir
}

// FindBlank returns the template for files with extension ext, if the
// project has one at _templates/blank.<ext>.
func (p *Project) FindBlank(ext string) (string, bool, error) {
	blank := filepath.Join(p.dir, templatesDir, "blank."+trimDot(ext))
	ok, err := storage.Exists(blank)
	if err != nil {
		return "", false, fmt.Errorf("project: find blank: %w", err)
	}
	return blank, ok, nil
}

// CopyBlank creates target from the blank template matching its extension,
// or as an empty file when there is none. An existing target is never
// overwritten.
func (p *Project) CopyBlank(target string) error {
	blank, ok, err := p.FindBlank(filepath.Ext(target))
	if err != nil {
		return err
	}
	if ok {
		return storage.CopyExclusive(blank, target)
	}
	return storage.CreateExclusive(target, nil)
}

func trimDot(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		return ext[1:]
	}
	return ext
}
