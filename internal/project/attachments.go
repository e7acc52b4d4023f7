package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/packet"
	"github.com/starford/stew/internal/props"
	"github.com/starford/stew/internal/storage"
)

// attachment describes one kind of packet file.
type attachment struct {
	descriptor string
	defaultExt func(*props.Manifest) string
	// inside is set for directory-backed nodes whose files live in the
	// children directory, like the root's _notes.md.
	inside bool
}

var (
	primaryFile   = attachment{defaultExt: func(m *props.Manifest) string { return m.DefaultDocExtension }}
	notesFile     = attachment{descriptor: packet.Notes, defaultExt: func(m *props.Manifest) string { return m.DefaultNotesExtension }}
	rootNotesFile = attachment{descriptor: packet.Notes, defaultExt: notesFile.defaultExt, inside: true}
	thumbnailFile = attachment{descriptor: packet.Thumbnail, defaultExt: func(m *props.Manifest) string { return m.DefaultThumbnailExtension }}
)

func (a attachment) find(n Node, ext string) ([]string, error) {
	var (
		files []string
		err   error
	)
	if a.inside {
		files, err = packet.MatchInside(n.DiskPath(), packet.Exactly(a.descriptor), ext)
	} else {
		files, err = packet.Match(n.DiskPath(), packet.Exactly(a.descriptor), ext)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.ErrNotFound, "document %s", n.Path())
		}
		return nil, fmt.Errorf("project: read %s: %w", n.Path(), err)
	}
	return files, nil
}

func (a attachment) file(n Node, ext string) string {
	name := a.descriptor + "." + trimDot(ext)
	if a.inside {
		return filepath.Join(n.DiskPath(), name)
	}
	return n.DiskPath() + name
}

// ensure returns the single attachment file, creating it from a blank
// template when there is none. Without ext the manifest default is used.
func (a attachment) ensure(n Node, ext string) (string, error) {
	list, err := a.find(n, ext)
	if err != nil {
		return "", err
	}
	if ext == "" {
		m, err := n.Project().Manifest()
		if err != nil {
			return "", err
		}
		ext = a.defaultExt(m)
		if len(list) > 1 && ext != "" {
			list = withExt(list, ext)
		}
	}
	switch len(list) {
	case 0:
		if ext == "" {
			return "", apperr.New(apperr.ErrInvalidArgument, "%s: an extension is needed to create %s", n.Path(), a.kind())
		}
		target := a.file(n, ext)
		if err := n.Project().CopyBlank(target); err != nil {
			return "", err
		}
		return target, nil
	case 1:
		return list[0], nil
	default:
		return "", apperr.New(apperr.ErrAmbiguousSelection, "%s has %d %s files", n.Path(), len(list), a.kind())
	}
}

func (a attachment) kind() string {
	if a.descriptor == "" {
		return "primary"
	}
	return a.descriptor[1:]
}

func withExt(files []string, ext string) []string {
	ext = "." + trimDot(ext)
	var out []string
	for _, f := range files {
		if filepath.Ext(f) == ext {
			out = append(out, f)
		}
	}
	return out
}

func primaries(n Node, ext string) ([]string, error)   { return primaryFile.find(n, ext) }
func ensurePrimary(n Node, ext string) (string, error) { return primaryFile.ensure(n, ext) }

// SelectPrimary picks the primary file to publish. Several candidates are
// narrowed to those with defaultExt, which must leave exactly one. A
// document without primaries yields "".
func SelectPrimary(n PrimaryBearing, defaultExt string) (string, error) {
	list, err := n.Primaries("")
	if err != nil {
		return "", err
	}
	if len(list) <= 1 {
		if len(list) == 0 {
			return "", nil
		}
		return list[0], nil
	}
	var narrowed []string
	if defaultExt != "" {
		narrowed = withExt(list, defaultExt)
	}
	if len(narrowed) != 1 {
		return "", apperr.New(apperr.ErrAmbiguousSelection, "%s has %d primary files", n.Path(), len(list))
	}
	return narrowed[0], nil
}

// EnsurePrimary returns the primary file, creating it from a blank
// template if needed.
func (d *Doc) EnsurePrimary(ext string) (string, error) { return ensurePrimary(d, ext) }

// Notes lists the notes files.
func (d *Doc) Notes(ext string) ([]string, error) { return notesFile.find(d, ext) }

// EnsureNotes returns the notes file, creating it if needed.
func (d *Doc) EnsureNotes(ext string) (string, error) { return notesFile.ensure(d, ext) }

// Thumbnail lists the thumbnail files.
func (d *Doc) Thumbnail(ext string) ([]string, error) { return thumbnailFile.find(d, ext) }

// EnsureThumbnail returns the thumbnail file, creating it if needed.
func (d *Doc) EnsureThumbnail(ext string) (string, error) { return thumbnailFile.ensure(d, ext) }

// Notes lists the project notes files (_notes.<ext> in the project
// directory).
func (r *Root) Notes(ext string) ([]string, error) { return rootNotesFile.find(r, ext) }

// EnsureNotes returns the project notes file, creating it if needed.
func (r *Root) EnsureNotes(ext string) (string, error) { return rootNotesFile.ensure(r, ext) }

const synopsisExt = ".txt"

// Synopsis returns the synopsis file, or "" when there is none.
func (d *Doc) Synopsis() (string, error) {
	list, err := packet.Match(d.DiskPath(), packet.Exactly(packet.Synopsis), synopsisExt)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.New(apperr.ErrNotFound, "document %s", d.Path())
		}
		return "", fmt.Errorf("project: read %s: %w", d.Path(), err)
	}
	switch len(list) {
	case 0:
		return "", nil
	case 1:
		return list[0], nil
	default:
		return "", apperr.New(apperr.ErrAmbiguousSelection, "%s has %d synopsis files", d.Path(), len(list))
	}
}

// EnsureSynopsis returns the synopsis file, creating an empty one if
// needed. Synopses have no templates.
func (d *Doc) EnsureSynopsis() (string, error) {
	file, err := d.Synopsis()
	if err != nil || file != "" {
		return file, err
	}
	file = d.DiskPath() + packet.Synopsis + synopsisExt
	if err := storage.CreateExclusive(file, nil); err != nil {
		return "", err
	}
	return file, nil
}

// ReadSynopsis returns the synopsis text, "" when there is no synopsis.
func (d *Doc) ReadSynopsis() (string, error) {
	file, err := d.Synopsis()
	if err != nil || file == "" {
		return "", err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("project: read synopsis: %w", err)
	}
	return string(data), nil
}

// BackupPrimary copies every primary file (only those with ext, when
// given) to <base>_backup-<id>.<ext>. An empty id is replaced by a
// timestamp. Existing backups are never overwritten: the copy stops with
// apperr.ErrAlreadyExists.
func (d *Doc) BackupPrimary(ext, id string) ([]string, error) {
	if id == "" {
		id = packet.BackupID(time.Now())
	}
	list, err := d.Primaries(ext)
	if err != nil {
		return nil, err
	}
	var made []string
	for _, primary := range list {
		backup := d.DiskPath() + packet.BackupPrefix + id + filepath.Ext(primary)
		if err := storage.CopyExclusive(primary, backup); err != nil {
			return made, err
		}
		made = append(made, backup)
	}
	return made, nil
}

// Backups lists the backup files ordered by id.
func (d *Doc) Backups(ext string) ([]string, error) {
	list, err := packet.Match(d.DiskPath(), packet.Prefixed(packet.BackupPrefix), ext)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.ErrNotFound, "document %s", d.Path())
		}
		return nil, fmt.Errorf("project: read %s: %w", d.Path(), err)
	}
	packet.SortBackups(list)
	return list, nil
}
