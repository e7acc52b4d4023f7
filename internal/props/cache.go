// Package props reads and writes the JSON property documents stored next
// to every packet, and the project manifest.
//
// Documents are cached by properties file path. Read hands out the same
// *Document until the entry is invalidated, so edits made through one
// handle are visible through every other.
package props

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/storage"
)

// Cache is the property document cache of one project.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Document
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Document)}
}

// Read returns the document stored in file. A missing file yields an empty
// document that is not written until saved.
func (c *Cache) Read(file string) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.entries[file]; ok {
		return d, nil
	}

	d := &Document{}
	data, err := os.ReadFile(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("props: read %s: %w", file, err)
	case len(strings.TrimSpace(string(data))) > 0:
		if err := json.Unmarshal(data, d); err != nil {
			return nil, apperr.New(apperr.ErrInvalidValue, "properties %s: %v", file, err)
		}
	}
	d.cache, d.file = c, file
	c.entries[file] = d
	return d, nil
}

// Write persists d to file and then makes it the cached entry. The cache is
// left untouched when the write fails.
func (c *Cache) Write(file string, d *Document) error {
	if err := d.Rules.Validate(); err != nil {
		return apperr.New(apperr.ErrInvalidValue, "properties %s: %v", file, err)
	}
	data, err := encode(d)
	if err != nil {
		return err
	}
	if err := storage.WriteAtomic(file, data); err != nil {
		return err
	}

	c.mu.Lock()
	d.cache, d.file = c, file
	c.entries[file] = d
	c.mu.Unlock()
	return nil
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Forget drops the entries belonging to the packet at diskPath and to
// everything below its children directory.
func (c *Cache) Forget(diskPath string) {
	own := diskPath + "_"
	below := diskPath + string(filepath.Separator)

	c.mu.Lock()
	defer c.mu.Unlock()
	for file := range c.entries {
		if strings.HasPrefix(file, own) && filepath.Dir(file) == filepath.Dir(diskPath) ||
			strings.HasPrefix(file, below) {
			delete(c.entries, file)
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
