package packet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/stew/internal/apperr"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSplit(t *testing.T) {
	cases := []struct {
		file, name, desc, ext string
	}{
		{"scene.odt", "scene", "", ".odt"},
		{"scene_notes.md", "scene", "_notes", ".md"},
		{"scene_properties.json", "scene", "_properties", ".json"},
		{"scene_backup-2024-01-02-03-04-05-006.odt", "scene", "_backup-2024-01-02-03-04-05-006", ".odt"},
		{"scene", "scene", "", ""},
		{"_stew.json", "", "_stew", ".json"},
	}
	for _, c := range cases {
		name, desc, ext := Split(c.file)
		if name != c.name || desc != c.desc || ext != c.ext {
			t.Errorf("Split(%q) = %q, %q, %q; want %q, %q, %q", c.file, name, desc, ext, c.name, c.desc, c.ext)
		}
	}
}

func TestStripAndClean(t *testing.T) {
	if got := Strip("/ch1/scene.odt"); got != "/ch1/scene" {
		t.Errorf("Strip = %q", got)
	}
	if got := Strip("scene_notes.md"); got != "scene" {
		t.Errorf("Strip = %q", got)
	}
	if got := Clean("a/b/../c"); got != "/a/c" {
		t.Errorf("Clean = %q", got)
	}
	if got := Clean("../../etc"); got != "/etc" {
		t.Errorf("Clean must not escape the root, got %q", got)
	}
}

func TestIsTroublesome(t *testing.T) {
	bad := []string{"", ".", "..", "a_b", "a.b", "a/b", " lead", "trail ", "what?", "x\ty"}
	for _, n := range bad {
		if !IsTroublesome(n) {
			t.Errorf("IsTroublesome(%q) = false", n)
		}
	}
	good := []string{"chapter1", "Scene Two", "épisode-3"}
	for _, n := range good {
		if IsTroublesome(n) {
			t.Errorf("IsTroublesome(%q) = true", n)
		}
	}
	if !IsPathTroublesome("/ok/bad_name") {
		t.Error("IsPathTroublesome should check every element")
	}
	if IsPathTroublesome("/ok/fine") {
		t.Error("IsPathTroublesome rejected a valid path")
	}
	if !IsPathTroublesome("/") {
		t.Error("the root is not a packet path")
	}
}

func TestGroup(t *testing.T) {
	entries := []string{".git", "_stew.json", "a.md", "a_properties.json", "b", "b_notes.txt", "a"}
	if diff := cmp.Diff([]string{"a", "b"}, Group(entries)); diff != "" {
		t.Errorf("Group mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch(t *testing.T) {
	dir := t.TempDir()
	touch(t,
		filepath.Join(dir, "scene.odt"),
		filepath.Join(dir, "scene.md"),
		filepath.Join(dir, "scene_notes.md"),
		filepath.Join(dir, "scene_backup-2024-01-02-03-04-05-001.odt"),
		filepath.Join(dir, "scene", "child_properties.json"),
		filepath.Join(dir, "scenery.md"),
	)
	base := filepath.Join(dir, "scene")

	prim, err := Match(base, Exactly(""), "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	want := []string{filepath.Join(dir, "scene.md"), filepath.Join(dir, "scene.odt")}
	if diff := cmp.Diff(want, prim); diff != "" {
		t.Errorf("primaries (-want +got):\n%s", diff)
	}

	odt, _ := Match(base, Exactly(""), "odt")
	if len(odt) != 1 {
		t.Errorf("primaries filtered by ext = %v", odt)
	}

	backups, _ := Match(base, Prefixed(BackupPrefix), "")
	if len(backups) != 1 {
		t.Errorf("backups = %v", backups)
	}
}

func TestMatchInside(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "_notes.md"), filepath.Join(dir, "_properties.json"))
	notes, err := MatchInside(dir, Exactly(Notes), "")
	if err != nil {
		t.Fatalf("MatchInside: %v", err)
	}
	if len(notes) != 1 || filepath.Base(notes[0]) != "_notes.md" {
		t.Errorf("notes = %v", notes)
	}
}

func TestRenameMovesWholePacket(t *testing.T) {
	dir := t.TempDir()
	touch(t,
		filepath.Join(dir, "old.md"),
		filepath.Join(dir, "old_notes.md"),
		filepath.Join(dir, "old_properties.json"),
		filepath.Join(dir, "old", "kid_properties.json"),
		filepath.Join(dir, "older.md"),
	)
	if err := Rename(filepath.Join(dir, "old"), filepath.Join(dir, "sub", "new")); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	for _, f := range []string{"new.md", "new_notes.md", "new_properties.json", "new/kid_properties.json"} {
		if _, err := os.Stat(filepath.Join(dir, "sub", filepath.FromSlash(f))); err != nil {
			t.Errorf("missing %s after rename: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "older.md")); err != nil {
		t.Error("a different packet sharing a prefix must not move")
	}
	left, _ := Files(filepath.Join(dir, "old"))
	if len(left) != 0 {
		t.Errorf("files left behind: %v", left)
	}
}

func TestRenameRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.md"), filepath.Join(dir, "b_properties.json"))
	err := Rename(filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.md")); err != nil {
		t.Error("source must be untouched on refusal")
	}
}

func TestRenameMissing(t *testing.T) {
	dir := t.TempDir()
	if err := Rename(filepath.Join(dir, "ghost"), filepath.Join(dir, "x")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBackupIDSortsChronologically(t *testing.T) {
	early := time.Date(2024, 3, 9, 8, 7, 6, 5*int(time.Millisecond), time.UTC)
	late := early.Add(995 * time.Millisecond)
	a, b := BackupID(early), BackupID(late)
	if a != "2024-03-09-08-07-06-005" {
		t.Errorf("BackupID = %q", a)
	}
	if !(a < b) {
		t.Errorf("%q should sort before %q", a, b)
	}

	paths := []string{"/p/x_backup-" + b + ".md", "/p/x_backup-" + a + ".md"}
	SortBackups(paths)
	if paths[0] != "/p/x_backup-"+a+".md" {
		t.Errorf("SortBackups = %v", paths)
	}
}
