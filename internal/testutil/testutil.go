// Package testutil provides shared test helpers for laying out projects on disk.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Files maps slash-separated paths relative to the project root to file
// contents. A path ending in "/" creates a directory.
type Files map[string]string

// Project creates a temporary project directory holding manifest (written
// to _stew.json unless empty) and files. It returns the root.
func Project(t *testing.T, manifest string, files Files) string {
	t.Helper()
	root := t.TempDir()
	if manifest != "" {
		Write(t, root, Files{"_stew.json": manifest})
	}
	Write(t, root, files)
	return root
}

// Write adds files below root.
func Write(t *testing.T, root string, files Files) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if name[len(name)-1] == '/' {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
