package props

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/stew/internal/apperr"
)

func TestOrder(t *testing.T) {
	cases := []struct {
		name       string
		list       OrderedList
		value      string
		pos        Position
		relativeTo string
		want       []string
	}{
		{"first", OrderedList{"a", "b", "c"}, "c", First, "", []string{"c", "a", "b"}},
		{"last", OrderedList{"a", "b", "c"}, "a", Last, "", []string{"b", "c", "a"}},
		{"next", OrderedList{"a", "b", "c"}, "a", Next, "", []string{"b", "a", "c"}},
		{"next at end", OrderedList{"a", "b", "c"}, "c", Next, "", []string{"a", "b", "c"}},
		{"previous", OrderedList{"a", "b", "c"}, "c", Previous, "", []string{"a", "c", "b"}},
		{"previous at start", OrderedList{"a", "b", "c"}, "a", Previous, "", []string{"a", "b", "c"}},
		{"before", OrderedList{"a", "b", "c"}, "c", Before, "a", []string{"c", "a", "b"}},
		{"after", OrderedList{"a", "b", "c"}, "a", After, "b", []string{"b", "a", "c"}},
		{"missing relative", OrderedList{"a", "b", "c"}, "a", Before, "zzz", []string{"b", "c", "a"}},
		{"new value", OrderedList{"a"}, "b", First, "", []string{"b", "a"}},
		{"new value next", OrderedList{"a"}, "b", Next, "", []string{"a", "b"}},
		{"empty", nil, "a", After, "b", []string{"a"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l := c.list
			l.Order(c.value, c.pos, c.relativeTo)
			if diff := cmp.Diff(c.want, l.Values()); diff != "" {
				t.Errorf("Order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrderAfterThenBefore(t *testing.T) {
	l := OrderedList{"w", "x", "y", "v", "z"}
	l.Order("v", After, "w")
	l.Order("v", Before, "w")

	i, j := l.IndexOf("v"), l.IndexOf("w")
	if i == NotFound || j != i+1 {
		t.Fatalf("v should sit right before w, got %v", l)
	}
	seen := map[string]int{}
	for _, s := range l {
		seen[s]++
	}
	for s, n := range seen {
		if n != 1 {
			t.Errorf("%q appears %d times", s, n)
		}
	}
}

func TestOrderedListRemove(t *testing.T) {
	l := OrderedList{"a", "b"}
	l.Remove("a")
	l.Remove("missing")
	l.Add("c")
	l.Add("b")
	if diff := cmp.Diff([]string{"c", "b"}, l.Values()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if l.IndexOf("a") != NotFound {
		t.Error("removed value still indexed")
	}
}

func TestMapped(t *testing.T) {
	var m Mapped[Category]
	if m.Has("chapter") {
		t.Fatal("empty map has key")
	}
	c := m.Add("chapter")
	c.PublishTitle = new(bool)
	if again := m.Add("chapter"); again != c {
		t.Error("Add must return the existing value")
	}
	m.Add("scene")
	if diff := cmp.Diff([]string{"chapter", "scene"}, m.Keys()); diff != "" {
		t.Errorf("Keys (-want +got):\n%s", diff)
	}
	m.Remove("scene")
	if m.Has("scene") {
		t.Error("Remove left the key")
	}
}

func TestDocumentRoundTripKeepsUnmanaged(t *testing.T) {
	in := `{"status":"draft","publish":true,"index":["b","a"],"publishTitleLevel":2,"wordGoal":500,"nested":{"x":[1,2]}}`
	var d Document
	if err := json.Unmarshal([]byte(in), &d); err != nil {
		t.Fatal(err)
	}
	if !d.IsPublished() || d.TitleLevel() != 2 || *d.Status != "draft" {
		t.Fatalf("managed fields not decoded: %+v", d)
	}
	if v, ok := d.Get("wordGoal"); !ok || v.(float64) != 500 {
		t.Errorf("Get(wordGoal) = %v, %v", v, ok)
	}
	if _, ok := d.Get("status"); ok {
		t.Error("Get must not expose managed keys")
	}

	out, err := json.Marshal(&d)
	if err != nil {
		t.Fatal(err)
	}
	var got, want map[string]any
	_ = json.Unmarshal(out, &got)
	_ = json.Unmarshal([]byte(in), &want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestDocumentSet(t *testing.T) {
	var d Document
	if err := d.Set("publish", "yes"); !errors.Is(err, apperr.ErrInvalidValue) {
		t.Errorf("Set(publish, string) err = %v", err)
	}
	if err := d.Set("publish", true); err != nil || !d.IsPublished() {
		t.Errorf("Set(publish, true) err = %v", err)
	}
	if err := d.Set("publishTitleLevel", float64(9)); !errors.Is(err, apperr.ErrInvalidValue) {
		t.Errorf("level 9 err = %v", err)
	}
	if err := d.Set("publishTitleLevel", float64(3)); err != nil || d.TitleLevel() != 3 {
		t.Errorf("level 3 err = %v, level = %d", err, d.TitleLevel())
	}
	if err := d.Set("tags", []any{"a", "b"}); err != nil || !d.HasTag("b") {
		t.Errorf("Set(tags) err = %v, tags = %v", err, d.Tags)
	}
	if err := d.Set("mood", "grim"); err != nil {
		t.Fatal(err)
	}
	if err := d.Set("mood", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Get("mood"); ok {
		t.Error("Set(nil) must delete")
	}
	if err := d.Set("publish", nil); err != nil || d.Publish != nil {
		t.Error("Set(nil) must clear a managed field")
	}
}

func TestStatusSteps(t *testing.T) {
	m := &Manifest{DefaultStatus: "idea", Statuses: OrderedList{"idea", "draft", "done"}}
	var d Document
	if got := d.StatusIn(m); got != "idea" {
		t.Errorf("default status = %q", got)
	}
	d.IncStatus(m)
	if got := d.IncStatus(m); got != "done" {
		t.Errorf("status = %q, want done", got)
	}
	if got := d.IncStatus(m); got != "done" {
		t.Errorf("status past the end = %q", got)
	}
	if got := d.DecStatus(m); got != "draft" {
		t.Errorf("status = %q, want draft", got)
	}
}

func TestTagsAndReferences(t *testing.T) {
	var d Document
	d.AddTag("red")
	d.AddTag("red")
	d.AddTag("blue")
	d.RemoveTag("red")
	if diff := cmp.Diff([]string{"blue"}, d.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}

	d.AddReference("/a", "A")
	d.AddReference("/b", "")
	d.AddReference("/a", "again")
	if n := len(d.ReferencesTo("/a")); n != 2 {
		t.Errorf("ReferencesTo = %d", n)
	}
	if n := d.RemoveReferencesTo("/a"); n != 2 {
		t.Errorf("removed %d", n)
	}
	if len(d.References) != 1 {
		t.Errorf("references left: %v", d.References)
	}
}

func TestRulesOverlay(t *testing.T) {
	yes, no, level := true, false, 2
	category := Rules{PublishTitle: &yes, PublishTitleLevel: &level}
	doc := Rules{PublishTitle: &no}
	got := category.Overlay(doc)
	if got.WantsTitle() || got.TitleLevel() != 2 {
		t.Errorf("overlay = title %v level %d", got.WantsTitle(), got.TitleLevel())
	}
}

func TestCacheReadSharesDocument(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a_properties.json")
	c := NewCache()

	d1, err := c.Read(file)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("reading a missing document must not create it")
	}
	d1.Title = strPtr("Alpha")
	d2, _ := c.Read(file)
	if d1 != d2 {
		t.Error("Read must return the cached pointer")
	}
	if err := d1.Save(); err != nil {
		t.Fatal(err)
	}

	c.Invalidate()
	d3, err := c.Read(file)
	if err != nil {
		t.Fatal(err)
	}
	if d3 == d1 || d3.TitleOr("") != "Alpha" {
		t.Errorf("after invalidation: same=%v title=%q", d3 == d1, d3.TitleOr(""))
	}
}

func TestCacheWriteFailureKeepsEntry(t *testing.T) {
	file := filepath.Join(t.TempDir(), "x_properties.json")
	c := NewCache()
	orig, err := c.Read(file)
	if err != nil {
		t.Fatal(err)
	}

	level := 9
	err = c.Write(file, &Document{Rules: Rules{PublishTitleLevel: &level}})
	if !errors.Is(err, apperr.ErrInvalidValue) {
		t.Fatalf("Write err = %v, want ErrInvalidValue", err)
	}
	if got, _ := c.Read(file); got != orig {
		t.Error("failed write replaced the cache entry")
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("failed write touched the disk")
	}
}

func TestCacheForget(t *testing.T) {
	dir := t.TempDir()
	c := NewCache()
	keep := filepath.Join(dir, "ab_properties.json")
	gone := []string{
		filepath.Join(dir, "a_properties.json"),
		filepath.Join(dir, "a", "child_properties.json"),
	}
	for _, f := range append(gone, keep) {
		if _, err := c.Read(f); err != nil {
			t.Fatal(err)
		}
	}
	c.Forget(filepath.Join(dir, "a"))
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestManifestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)
	s := NewManifestStore(path)
	if _, err := s.Read(); !errors.Is(err, apperr.ErrProjectNotFound) {
		t.Fatalf("Read err = %v", err)
	}

	m := &Manifest{DefaultDocExtension: "md", Extra: Extra{"theme": json.RawMessage(`"dark"`)}}
	if err := s.Create(m); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(&Manifest{}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second Create err = %v", err)
	}

	bad := 7
	m.Categories.Add("chapter").PublishTitleLevel = &bad
	if err := m.Save(); !errors.Is(err, apperr.ErrInvalidValue) {
		t.Errorf("Save with level 7 err = %v", err)
	}
	m.Categories.Remove("chapter")
	m.SetEditor("text/markdown", "vim")
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	s.Invalidate()
	got, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if cmd, _ := got.Editor("text/markdown"); cmd != "vim" {
		t.Errorf("editor = %q", cmd)
	}
	if v, ok := got.Get("theme"); !ok || v != "dark" {
		t.Errorf("unmanaged theme = %v", v)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"defaultDocExtension": "md"`) {
		t.Errorf("manifest not indented as expected:\n%s", data)
	}
}

func strPtr(s string) *string { return &s }
