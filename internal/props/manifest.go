package props

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/storage"
)

// ManifestFile is the name of the project manifest at the project root.
const ManifestFile = "_stew.json"

// Category is a named set of publish rules.
type Category struct {
	Rules
	User map[string]any `json:"user,omitempty"`

	Extra Extra `json:"-"`
}

var categoryKeys = append([]string{"user"}, ruleKeys...)

type category Category

func (c *Category) MarshalJSON() ([]byte, error) {
	return marshalWithExtra((*category)(c), c.Extra)
}

func (c *Category) UnmarshalJSON(data []byte) error {
	extra, err := unmarshalWithExtra(data, (*category)(c), categoryKeys)
	if err != nil {
		return err
	}
	c.Extra = extra
	return nil
}

// Set assigns a category property by name, like Document.Set.
func (c *Category) Set(name string, value any) (err error) {
	switch {
	case name == "user":
		c.User, err = asObject(name, value)
		return err
	case isManaged(ruleKeys, name):
		return c.Rules.set(name, value)
	default:
		return c.Extra.set(name, value)
	}
}

// Manifest is the project-wide configuration stored in _stew.json.
type Manifest struct {
	DefaultDocExtension       string            `json:"defaultDocExtension,omitempty"`
	DefaultThumbnailExtension string            `json:"defaultThumbnailExtension,omitempty"`
	DefaultNotesExtension     string            `json:"defaultNotesExtension,omitempty"`
	DefaultPublishExtension   string            `json:"defaultPublishExtension,omitempty"`
	Categories                Mapped[Category]  `json:"categories,omitempty"`
	DefaultCategory           string            `json:"defaultCategory,omitempty"`
	DefaultStatus             string            `json:"defaultStatus,omitempty"`
	Statuses                  OrderedList       `json:"statuses,omitempty"`
	Editors                   map[string]string `json:"editors,omitempty"`
	User                      map[string]any    `json:"user,omitempty"`

	Extra Extra `json:"-"`

	store *ManifestStore
}

var manifestKeys = []string{
	"defaultDocExtension", "defaultThumbnailExtension", "defaultNotesExtension",
	"defaultPublishExtension", "categories", "defaultCategory", "defaultStatus",
	"statuses", "editors", "user",
}

type manifest Manifest

func (m *Manifest) MarshalJSON() ([]byte, error) {
	return marshalWithExtra((*manifest)(m), m.Extra)
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	extra, err := unmarshalWithExtra(data, (*manifest)(m), manifestKeys)
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

// Validate checks every category's rules.
func (m *Manifest) Validate() error {
	errs := validation.Errors{}
	for name, c := range m.Categories {
		if c == nil {
			continue
		}
		if err := c.Validate(); err != nil {
			errs["categories."+name] = err
		}
	}
	return errs.Filter()
}

// Category returns the named category, or nil.
func (m *Manifest) Category(name string) *Category {
	c, _ := m.Categories.Get(name)
	return c
}

// Editor returns the command configured for a MIME type.
func (m *Manifest) Editor(mime string) (string, bool) {
	cmd, ok := m.Editors[mime]
	return cmd, ok
}

// SetEditor configures the command for a MIME type; an empty command
// removes it.
func (m *Manifest) SetEditor(mime, command string) {
	if command == "" {
		delete(m.Editors, mime)
		return
	}
	if m.Editors == nil {
		m.Editors = make(map[string]string)
	}
	m.Editors[mime] = command
}

// Set assigns an unmanaged manifest property. Managed fields are set
// through their typed fields.
func (m *Manifest) Set(name string, value any) error {
	if isManaged(manifestKeys, name) {
		s, err := asString(name, value)
		if err != nil {
			return err
		}
		v := deref(s, "")
		switch name {
		case "defaultDocExtension":
			m.DefaultDocExtension = v
		case "defaultThumbnailExtension":
			m.DefaultThumbnailExtension = v
		case "defaultNotesExtension":
			m.DefaultNotesExtension = v
		case "defaultPublishExtension":
			m.DefaultPublishExtension = v
		case "defaultCategory":
			m.DefaultCategory = v
		case "defaultStatus":
			m.DefaultStatus = v
		default:
			return apperr.New(apperr.ErrInvalidValue, "%s cannot be set directly", name)
		}
		return nil
	}
	return m.Extra.set(name, value)
}

// Get reads an unmanaged manifest property.
func (m *Manifest) Get(name string) (any, bool) {
	if isManaged(manifestKeys, name) {
		return nil, false
	}
	return m.Extra.Get(name)
}

// Save validates the manifest and writes it back.
func (m *Manifest) Save() error {
	return m.store.Write(m)
}

// ManifestStore caches the manifest of one project.
type ManifestStore struct {
	path string

	mu     sync.Mutex
	cached *Manifest
}

// NewManifestStore returns a store for the manifest file at path.
func NewManifestStore(path string) *ManifestStore {
	return &ManifestStore{path: path}
}

// Path returns the manifest file path.
func (s *ManifestStore) Path() string { return s.path }

// Read loads the manifest, or returns the cached one. A missing file is
// apperr.ErrProjectNotFound.
func (s *ManifestStore) Read() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.ErrProjectNotFound, "no manifest at %s", s.path)
		}
		return nil, fmt.Errorf("props: read manifest: %w", err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, apperr.New(apperr.ErrInvalidValue, "manifest %s: %v", s.path, err)
	}
	m.store = s
	s.cached = m
	return m, nil
}

// Create writes a fresh manifest; it fails with apperr.ErrAlreadyExists
// when one is already there.
func (s *ManifestStore) Create(m *Manifest) error {
	data, err := encode(m)
	if err != nil {
		return err
	}
	if err := storage.CreateExclusive(s.path, data); err != nil {
		return err
	}
	s.mu.Lock()
	m.store = s
	s.cached = m
	s.mu.Unlock()
	return nil
}

// Write validates and persists m, then caches it.
func (s *ManifestStore) Write(m *Manifest) error {
	if err := m.Validate(); err != nil {
		return apperr.New(apperr.ErrInvalidValue, "manifest: %v", err)
	}
	data, err := encode(m)
	if err != nil {
		return err
	}
	if err := storage.WriteAtomic(s.path, data); err != nil {
		return err
	}
	s.mu.Lock()
	m.store = s
	s.cached = m
	s.mu.Unlock()
	return nil
}

// Invalidate drops the cached manifest.
func (s *ManifestStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("props: encode: %w", err)
	}
	return append(data, '\n'), nil
}
