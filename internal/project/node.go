package project

import (
	"path"
	"path/filepath"

	"github.com/starford/stew/internal/packet"
	"github.com/starford/stew/internal/props"
)

// Node is anything in the project tree that has a path and properties.
type Node interface {
	Project() *Project
	// Path is the slash path of the node within its tree, "/" for a root.
	Path() string
	BaseName() string
	// DiskPath is the packet location: the children directory and the
	// common prefix of the packet's files.
	DiskPath() string
	Properties() (*props.Document, error)
}

// Container is a node whose children can be listed.
type Container interface {
	Node
	// at returns the node of the same tree at an absolute path.
	at(logical string) Node
	// treeDir is the directory that the tree's paths are relative to.
	treeDir() string
	sortsChildren() bool
}

// PrimaryBearing is a node with primary content files.
type PrimaryBearing interface {
	Node
	Primaries(ext string) ([]string, error)
	EnsurePrimary(ext string) (string, error)
}

// Renameable is a node that can be renamed or moved. Roots are not.
type Renameable interface {
	Node
	setPath(logical string)
}

// Root is the project root document. Its files live inside the project
// directory: _properties.json, _notes.<ext>.
type Root struct {
	project *Project
}

func (r *Root) Project() *Project { return r.project }
func (r *Root) Path() string      { return "/" }
func (r *Root) BaseName() string  { return "" }
func (r *Root) DiskPath() string  { return r.project.dir }

func (r *Root) Properties() (*props.Document, error) {
	return r.project.cache.Read(filepath.Join(r.project.dir, packet.Properties+".json"))
}

func (r *Root) at(logical string) Node {
	if logical == "/" {
		return r
	}
	return &Doc{project: r.project, path: logical}
}

func (r *Root) treeDir() string     { return r.project.dir }
func (r *Root) sortsChildren() bool { return true }

// Doc is a document below the root.
type Doc struct {
	project *Project
	path    string
}

func (d *Doc) Project() *Project { return d.project }
func (d *Doc) Path() string      { return d.path }
func (d *Doc) BaseName() string  { return path.Base(d.path) }

func (d *Doc) DiskPath() string {
	return packet.DiskPath(d.project.dir, d.path)
}

func (d *Doc) Properties() (*props.Document, error) {
	return d.project.cache.Read(d.DiskPath() + packet.Properties + ".json")
}

func (d *Doc) at(logical string) Node                 { return d.project.Root().at(logical) }
func (d *Doc) treeDir() string                        { return d.project.dir }
func (d *Doc) sortsChildren() bool                    { return true }
func (d *Doc) setPath(logical string)                 { d.path = logical }
func (d *Doc) String() string                         { return d.path }
func (d *Doc) Primaries(ext string) ([]string, error) { return primaries(d, ext) }

// Tags is the root of the tag tree. Tag listings keep directory order.
type Tags struct {
	project *Project
}

func (t *Tags) Project() *Project { return t.project }
func (t *Tags) Path() string      { return "/" }
func (t *Tags) BaseName() string  { return "" }
func (t *Tags) DiskPath() string  { return t.treeDir() }

func (t *Tags) Properties() (*props.Document, error) {
	return t.project.cache.Read(filepath.Join(t.treeDir(), packet.Properties+".json"))
}

func (t *Tags) at(logical string) Node {
	if logical == "/" {
		return t
	}
	return &Tag{project: t.project, path: logical}
}

func (t *Tags) treeDir() string     { return filepath.Join(t.project.dir, tagsDir) }
func (t *Tags) sortsChildren() bool { return false }

// Tag is a tag definition. Its properties carry the tag color; tags may
// nest.
type Tag struct {
	project *Project
	path    string
}

func (t *Tag) Project() *Project { return t.project }
func (t *Tag) Path() string      { return t.path }
func (t *Tag) BaseName() string  { return path.Base(t.path) }

func (t *Tag) DiskPath() string {
	return packet.DiskPath(t.treeDir(), t.path)
}

func (t *Tag) Properties() (*props.Document, error) {
	return t.project.cache.Read(t.DiskPath() + packet.Properties + ".json")
}

func (t *Tag) at(logical string) Node                   { return t.project.Tags().at(logical) }
func (t *Tag) treeDir() string                          { return filepath.Join(t.project.dir, tagsDir) }
func (t *Tag) sortsChildren() bool                      { return false }
func (t *Tag) setPath(logical string)                   { t.path = logical }
func (t *Tag) Primaries(ext string) ([]string, error)   { return primaries(t, ext) }
func (t *Tag) EnsurePrimary(ext string) (string, error) { return ensurePrimary(t, ext) }

var (
	_ Container      = (*Root)(nil)
	_ Container      = (*Doc)(nil)
	_ Container      = (*Tags)(nil)
	_ Container      = (*Tag)(nil)
	_ PrimaryBearing = (*Doc)(nil)
	_ PrimaryBearing = (*Tag)(nil)
	_ Renameable     = (*Doc)(nil)
	_ Renameable     = (*Tag)(nil)
)
