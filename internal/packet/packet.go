// Package packet maps logical document paths onto packets: the sibling
// files that share a base name on disk.
//
// A file name splits into three parts. The packet name runs up to the first
// '_' or '.', the descriptor is the '_'-prefixed part that follows it, and
// the extension is whatever follows the last '.':
//
//	scene.odt                  name=scene descriptor=""            ext=.odt
//	scene_notes.md             name=scene descriptor=_notes        ext=.md
//	scene_backup-2024-...-123.odt  name=scene descriptor=_backup-... ext=.odt
//	scene                      name=scene (children directory)
package packet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/starford/stew/internal/apperr"
)

// Descriptors used by stew's sidecar files.
const (
	Properties   = "_properties"
	Notes        = "_notes"
	Thumbnail    = "_thumbnail"
	Synopsis     = "_synopsis"
	BackupPrefix = "_backup-"
)

const reservedChars = `/\:*?"<>|_.`

// Split breaks a file name into packet name, descriptor and extension.
func Split(file string) (name, descriptor, ext string) {
	i := strings.IndexAny(file, "_.")
	if i < 0 {
		return file, "", ""
	}
	name, rest := file[:i], file[i:]
	if dot := strings.LastIndexByte(rest, '.'); dot >= 0 {
		return name, rest[:dot], rest[dot:]
	}
	return name, rest, ""
}

// Name returns the packet name of a file name.
func Name(file string) string {
	name, _, _ := Split(file)
	return name
}

// Strip reduces a logical path whose last element names a file of a
// packet (e.g. "/ch1/scene.odt") to the packet path ("/ch1/scene").
func Strip(logical string) string {
	dir, file := path.Split(logical)
	if file == "" || file == "." || file == ".." {
		return logical
	}
	return dir + Name(file)
}

// Clean returns the canonical form of a logical path: rooted at "/",
// slash separated, with "." and ".." resolved lexically.
func Clean(logical string) string {
	return path.Clean("/" + logical)
}

// DiskPath maps a logical document path to its packet location under root.
func DiskPath(root, logical string) string {
	return filepath.Join(root, filepath.FromSlash(Clean(logical)))
}

// BaseName returns the last element of a logical path.
func BaseName(logical string) string {
	return path.Base(Clean(logical))
}

// IsTroublesome reports whether name cannot safely be used as a packet
// name on disk.
func IsTroublesome(name string) bool {
	if name == "" || name == "." || name == ".." {
		return true
	}
	if strings.TrimSpace(name) != name {
		return true
	}
	if strings.ContainsAny(name, reservedChars) {
		return true
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// IsPathTroublesome checks every element of a logical path. An empty path
// or the bare root is troublesome: neither names a packet.
func IsPathTroublesome(logical string) bool {
	p := strings.Trim(logical, "/")
	if p == "" {
		return true
	}
	for _, elem := range strings.Split(p, "/") {
		if IsTroublesome(elem) {
			return true
		}
	}
	return false
}

// ValidateName returns apperr.ErrTroublesomeName for a troublesome name.
func ValidateName(name string) error {
	if IsTroublesome(name) {
		return apperr.New(apperr.ErrTroublesomeName, "%q", name)
	}
	return nil
}

// Group returns the distinct packet names found in a directory listing, in
// the order they first appear. Hidden entries and files with an empty
// packet name (project-level files such as _stew.json) are skipped.
func Group(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e, ".") {
			continue
		}
		name := Name(e)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Files lists the names of every entry belonging to the packet at
// diskPath, the children directory included. A missing parent directory
// is returned as an fs.ErrNotExist error.
func Files(diskPath string) ([]string, error) {
	return members(filepath.Dir(diskPath), filepath.Base(diskPath))
}

func members(dir, name string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if Name(e.Name()) == name {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Selector picks packet files by descriptor.
type Selector func(descriptor string) bool

// Exactly selects one descriptor ("" selects primaries).
func Exactly(descriptor string) Selector {
	return func(d string) bool { return d == descriptor }
}

// Prefixed selects descriptors starting with prefix.
func Prefixed(prefix string) Selector {
	return func(d string) bool { return strings.HasPrefix(d, prefix) }
}

// Match returns absolute paths of the packet's files whose descriptor is
// selected and whose extension equals ext (any extension when ext is
// empty). The children directory never matches.
func Match(diskPath string, sel Selector, ext string) ([]string, error) {
	return match(filepath.Dir(diskPath), filepath.Base(diskPath), sel, ext)
}

// MatchInside is Match for a directory-backed packet: the files live
// inside dir with an empty packet name (e.g. <root>/_notes.md).
func MatchInside(dir string, sel Selector, ext string) ([]string, error) {
	return match(dir, "", sel, ext)
}

func match(dir, name string, sel Selector, ext string) ([]string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	names, err := members(dir, name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		_, d, e := Split(n)
		if d == "" && e == "" {
			continue
		}
		if !sel(d) {
			continue
		}
		if ext != "" && e != ext {
			continue
		}
		out = append(out, filepath.Join(dir, n))
	}
	return out, nil
}

// Rename moves every file of the packet at oldDisk to newDisk, keeping
// each file's descriptor and extension. The destination must not hold any
// file of a packet with the new name.
//
// Files are moved one by one. On failure the error reports how many had
// already moved; nothing is rolled back.
func Rename(oldDisk, newDisk string) error {
	files, err := Files(oldDisk)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.New(apperr.ErrNotFound, "packet %s", oldDisk)
		}
		return fmt.Errorf("packet: read %s: %w", oldDisk, err)
	}
	if len(files) == 0 {
		return apperr.New(apperr.ErrNotFound, "packet %s", oldDisk)
	}

	existing, err := Files(newDisk)
	switch {
	case err == nil && len(existing) > 0:
		return apperr.New(apperr.ErrAlreadyExists, "packet %s", newDisk)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("packet: read %s: %w", newDisk, err)
	}

	newDir := filepath.Dir(newDisk)
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		return fmt.Errorf("packet: mkdir %s: %w", newDir, err)
	}

	oldDir, oldBase, newBase := filepath.Dir(oldDisk), filepath.Base(oldDisk), filepath.Base(newDisk)
	for i, f := range files {
		suffix := strings.TrimPrefix(f, oldBase)
		if err := os.Rename(filepath.Join(oldDir, f), filepath.Join(newDir, newBase+suffix)); err != nil {
			return fmt.Errorf("packet: rename %s (moved %d of %d files): %w", f, i, len(files), err)
		}
	}
	return nil
}

// BackupID formats t as a backup id whose lexical order matches its
// chronological order: year-month-day-hour-minute-second-millisecond.
func BackupID(t time.Time) string {
	return fmt.Sprintf("%s-%03d", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

// SortBackups orders backup file paths by id.
func SortBackups(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		_, da, _ := Split(filepath.Base(a))
		_, db, _ := Split(filepath.Base(b))
		return strings.Compare(da, db)
	})
}
