package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/stew/internal/apperr"
)

func TestWriteAtomicCreatesSubdirs(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a", "b", "c_properties.json")
	if err := WriteAtomic(p, []byte("{}")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteAtomicNoLeftovers(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x_properties.json")
	_ = WriteAtomic(p, []byte("original"))
	if err := WriteAtomic(p, []byte("updated")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, _ := os.ReadFile(p)
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, ".stew-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestCreateExclusive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "doc_properties.json")
	if err := CreateExclusive(p, []byte("{}")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := CreateExclusive(p, []byte("{}"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("second create err = %v, want ErrAlreadyExists", err)
	}
}

func TestCopyExclusive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "blank.md")
	dst := filepath.Join(dir, "scene.md")
	_ = os.WriteFile(src, []byte("# blank\n"), 0o644)

	if err := CopyExclusive(src, dst); err != nil {
		t.Fatalf("CopyExclusive: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "# blank\n" {
		t.Errorf("content = %q", got)
	}
	if err := CopyExclusive(src, dst); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("clobbering copy err = %v, want ErrAlreadyExists", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(filepath.Join(dir, "nope"))
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
	ok, err = Exists(dir)
	if err != nil || !ok {
		t.Errorf("Exists(dir) = %v, %v", ok, err)
	}
}
