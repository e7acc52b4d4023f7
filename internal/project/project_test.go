package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/testutil"
)

func paths(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Path())
	}
	return out
}

func tree(t *testing.T, manifest string, files testutil.Files) *Project {
	t.Helper()
	return New(testutil.Project(t, manifest, files))
}

func TestAddThenGet(t *testing.T) {
	p := tree(t, `{}`, nil)
	root := p.Root()

	for _, name := range []string{"ch1", "ch1/scene", "/ch2/intro"} {
		added, err := Add(root, name)
		if err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
		got, err := Get(root, name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if got.Path() != added.Path() {
			t.Errorf("Get(%q).Path() = %q, Add gave %q", name, got.Path(), added.Path())
		}
	}
	if n, _ := Get(root, "ch2/./scene/../intro"); n == nil || n.Path() != "/ch2/intro" {
		t.Errorf("canonical path not found")
	}
}

func TestAddRejects(t *testing.T) {
	p := tree(t, `{}`, nil)
	if _, err := Add(p.Root(), "scene"); err != nil {
		t.Fatal(err)
	}
	if _, err := Add(p.Root(), "scene"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second Add err = %v", err)
	}
	for _, bad := range []string{"", "a_b", "x.md", "../escape", "ok/.."} {
		if _, err := Add(p.Root(), bad); !errors.Is(err, apperr.ErrTroublesomeName) {
			t.Errorf("Add(%q) err = %v, want ErrTroublesomeName", bad, err)
		}
	}
}

func TestGet(t *testing.T) {
	p := tree(t, `{}`, testutil.Files{
		"ch1/scene.odt": "x",
	})
	root := p.Root()

	if n, err := Get(root, "/"); err != nil || n != Node(root) {
		t.Errorf("Get(/) = %v, %v", n, err)
	}
	ch1, err := Get(root, "/ch1")
	if err != nil {
		t.Fatalf("a children directory alone is a packet: %v", err)
	}
	n, err := Get(ch1.(Container), "scene.odt")
	if err != nil || n.Path() != "/ch1/scene" {
		t.Errorf("Get relative file = %v, %v", n, err)
	}
	if _, err := Get(root, "/ch1/missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if _, err := Get(root, "/nodir/missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing parent err = %v", err)
	}
}

func TestListOrder(t *testing.T) {
	p := tree(t, `{}`, testutil.Files{
		"a_properties.json":   "{}",
		"a/x_properties.json": "{}",
		"a/y.md":              "",
		"b_properties.json":   "{}",
		"b/z/deep.md":         "",
		".hidden.md":          "",
		"_notes.md":           "",
	})
	ctx := context.Background()

	flat, err := List(ctx, p.Root(), NonRecursive)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/a", "/b"}, paths(flat)); diff != "" {
		t.Errorf("non-recursive (-want +got):\n%s", diff)
	}

	all, err := List(ctx, p.Root(), Recursive)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/a", "/a/x", "/a/y", "/b", "/b/z", "/b/z/deep"}
	if diff := cmp.Diff(want, paths(all)); diff != "" {
		t.Errorf("recursive (-want +got):\n%s", diff)
	}

	leaves, err := List(ctx, p.Root(), func(_ context.Context, n Node) (bool, bool, error) {
		return n.Path() != "/a" && n.Path() != "/b", true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/a/x", "/a/y", "/b/z", "/b/z/deep"}, paths(leaves)); diff != "" {
		t.Errorf("recurse without accept (-want +got):\n%s", diff)
	}
}

func TestListSortsByIndex(t *testing.T) {
	p := tree(t, `{}`, testutil.Files{
		"_properties.json": `{"index":["c","a","gone"]}`,
		"a.md":             "",
		"b.md":             "",
		"c.md":             "",
		"d.md":             "",
	})
	got, err := List(context.Background(), p.Root(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/c", "/a", "/b", "/d"}, paths(got)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestListMissingDirectory(t *testing.T) {
	p := tree(t, `{}`, testutil.Files{"leaf.md": ""})
	leaf, err := Get(p.Root(), "/leaf")
	if err != nil {
		t.Fatal(err)
	}
	got, err := List(context.Background(), leaf.(Container), Recursive)
	if err != nil || len(got) != 0 {
		t.Errorf("List(leaf) = %v, %v", got, err)
	}
}

func TestListHonorsContext(t *testing.T) {
	p := tree(t, `{}`, testutil.Files{"a.md": "", "b.md": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := List(ctx, p.Root(), Recursive); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTagsListInDirectoryOrder(t *testing.T) {
	p := tree(t, `{}`, testutil.Files{
		"_tags/_properties.json": `{"index":["zeta","alpha"]}`,
	})
	for _, name := range []string{"zeta", "alpha"} {
		if _, err := Add(p.Tags(), name); err != nil {
			t.Fatal(err)
		}
	}
	got, err := List(context.Background(), p.Tags(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/alpha", "/zeta"}, paths(got)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(p.Dir(), "_tags", "zeta_properties.json")); err != nil {
		t.Errorf("tag properties not under _tags: %v", err)
	}
	docs, _ := List(context.Background(), p.Root(), Recursive)
	if len(docs) != 0 {
		t.Errorf("tags leaked into the document tree: %v", paths(docs))
	}
}

func TestRenameMovesPacket(t *testing.T) {
	p := tree(t, `{}`, testutil.Files{
		"ch1/scene.md":              "text",
		"ch1/scene_notes.md":        "notes",
		"ch1/scene_properties.json": `{"status":"draft"}`,
	})
	root := p.Root()
	n, err := Get(root, "/ch1/scene")
	if err != nil {
		t.Fatal(err)
	}
	doc, _ := n.Properties()
	doc.Title = ptr("Opening")
	if err := doc.Save(); err != nil {
		t.Fatal(err)
	}

	if err := Rename(n, "opening"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if n.Path() != "/ch1/opening" {
		t.Errorf("path after rename = %q", n.Path())
	}
	if _, err := Get(root, "/ch1/scene"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old path err = %v", err)
	}
	for _, f := range []string{"opening.md", "opening_notes.md", "opening_properties.json"} {
		if _, err := os.Stat(filepath.Join(p.Dir(), "ch1", f)); err != nil {
			t.Errorf("%s missing: %v", f, err)
		}
	}
	moved, _ := n.Properties()
	if moved.TitleOr("") != "Opening" || *moved.Status != "draft" {
		t.Errorf("properties did not follow the packet: %+v", moved)
	}

	if err := Rename(root, "x"); !errors.Is(err, apperr.ErrCannotModifyRoot) {
		t.Errorf("rename root err = %v", err)
	}
	if err := Rename(n, "bad_name"); !errors.Is(err, apperr.ErrTroublesomeName) {
		t.Errorf("troublesome rename err = %v", err)
	}
}

func TestMoveInto(t *testing.T) {
	p := tree(t, `{}`, testutil.Files{
		"a_properties.json": "{}",
		"a/x.md":            "",
		"a/x/kid.md":        "",
		"b_properties.json": "{}",
	})
	root := p.Root()
	a, _ := Get(root, "/a")
	x, _ := Get(root, "/a/x")
	b, _ := Get(root, "/b")

	if err := MoveInto(x.(Container), a); !errors.Is(err, apperr.ErrCannotMoveIntoSelf) {
		t.Errorf("move into descendant err = %v", err)
	}
	if err := MoveInto(a.(Container), a); !errors.Is(err, apperr.ErrCannotMoveIntoSelf) {
		t.Errorf("move into self err = %v", err)
	}
	if err := MoveInto(b.(Container), root); !errors.Is(err, apperr.ErrCannotModifyRoot) {
		t.Errorf("move root err = %v", err)
	}

	if err := MoveInto(b.(Container), x); err != nil {
		t.Fatalf("MoveInto: %v", err)
	}
	if x.Path() != "/b/x" {
		t.Errorf("path = %q", x.Path())
	}
	if _, err := Get(root, "/b/x/kid"); err != nil {
		t.Errorf("children did not move: %v", err)
	}

	if err := MoveInto(root, x); err != nil {
		t.Fatalf("MoveInto root: %v", err)
	}
	if _, err := Get(root, "/x"); err != nil {
		t.Error(err)
	}
}

func TestOpenAndInit(t *testing.T) {
	dir := testutil.Project(t, `{}`, testutil.Files{"ch1/": ""})
	sub := filepath.Join(dir, "ch1")

	p, err := Open(sub, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.Dir() != dir {
		t.Errorf("Dir = %q, want %q", p.Dir(), dir)
	}
	if _, err := Open(sub, false); !errors.Is(err, apperr.ErrProjectNotFound) {
		t.Errorf("Open without search err = %v", err)
	}
	if _, err := Init(sub, nil); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("nested Init err = %v", err)
	}

	fresh := t.TempDir()
	if _, err := Init(fresh, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fresh, "_stew.json")); err != nil {
		t.Error(err)
	}
}

func TestClearCache(t *testing.T) {
	p := tree(t, `{"defaultDocExtension":"md"}`, testutil.Files{"a_properties.json": `{"title":"One"}`})
	a, _ := Get(p.Root(), "/a")
	doc, _ := a.Properties()
	m, _ := p.Manifest()

	testutil.Write(t, p.Dir(), testutil.Files{
		"a_properties.json": `{"title":"Two"}`,
		"_stew.json":        `{"defaultDocExtension":"odt"}`,
	})
	if again, _ := a.Properties(); again != doc || again.TitleOr("") != "One" {
		t.Error("properties must stay cached until cleared")
	}
	p.ClearCache()
	doc, _ = a.Properties()
	m, _ = p.Manifest()
	if doc.TitleOr("") != "Two" || m.DefaultDocExtension != "odt" {
		t.Errorf("after ClearCache title=%q ext=%q", doc.TitleOr(""), m.DefaultDocExtension)
	}
}

func ptr[T any](v T) *T { return &v }
