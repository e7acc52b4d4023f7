package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/packet"
	"github.com/starford/stew/internal/props"
	"github.com/starford/stew/internal/storage"
)

// Filter decides, per listed node, whether it is part of the result and
// whether its own children are listed right after it.
type Filter func(ctx context.Context, n Node) (accept, recurse bool, err error)

// NonRecursive accepts every child and does not descend.
func NonRecursive(context.Context, Node) (bool, bool, error) { return true, false, nil }

// Recursive accepts every node in depth-first order.
func Recursive(context.Context, Node) (bool, bool, error) { return true, true, nil }

// List returns the children of c that filter accepts. Children are ordered
// by c's index property; names missing from the index follow in directory
// order. Whenever filter asks to recurse, the node's own listing is spliced
// in right after it. A container without a children directory lists
// nothing.
func List(ctx context.Context, c Container, filter Filter) ([]Node, error) {
	if filter == nil {
		filter = NonRecursive
	}
	var out []Node
	if err := walk(ctx, c, filter, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(ctx context.Context, c Container, filter Filter, out *[]Node) error {
	kids, err := children(c)
	if err != nil {
		return err
	}
	for _, n := range kids {
		if err := ctx.Err(); err != nil {
			return err
		}
		accept, recurse, err := filter(ctx, n)
		if err != nil {
			return err
		}
		if accept {
			*out = append(*out, n)
		}
		if recurse {
			if err := walk(ctx, n.(Container), filter, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func children(c Container) ([]Node, error) {
	entries, err := os.ReadDir(c.DiskPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return nil, nil
		}
		return nil, fmt.Errorf("project: list %s: %w", c.Path(), err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	packets := packet.Group(names)

	if c.sortsChildren() {
		doc, err := c.Properties()
		if err != nil {
			return nil, err
		}
		sortByIndex(packets, doc.Index)
	}

	nodes := make([]Node, 0, len(packets))
	for _, name := range packets {
		nodes = append(nodes, c.at(path.Join(c.Path(), name)))
	}
	return nodes, nil
}

func sortByIndex(names []string, index props.OrderedList) {
	rank := func(name string) int {
		if i := index.IndexOf(name); i != props.NotFound {
			return i
		}
		return len(index)
	}
	slices.SortStableFunc(names, func(a, b string) int {
		return rank(a) - rank(b)
	})
}

// resolve interprets p relative to base; absolute paths ignore base.
func resolve(base, p string) string {
	if strings.HasPrefix(p, "/") {
		return packet.Clean(p)
	}
	return packet.Clean(base + "/" + p)
}

// Add creates the document name (possibly nested, e.g. "part1/chapter2")
// below c by writing an empty properties file. It fails with
// apperr.ErrAlreadyExists when the packet already has properties.
func Add(c Container, name string) (Node, error) {
	logical := resolve(c.Path(), name)
	if packet.IsPathTroublesome(name) || packet.IsPathTroublesome(logical) {
		return nil, apperr.New(apperr.ErrTroublesomeName, "%q", name)
	}

	n := c.at(logical)
	file := n.DiskPath() + packet.Properties + ".json"
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("project: add %s: %w", logical, err)
	}
	if err := storage.CreateExclusive(file, []byte("{}\n")); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return nil, apperr.New(apperr.ErrAlreadyExists, "document %s", logical)
		}
		return nil, err
	}
	return n, nil
}

// Get finds the document at p relative to c. File names are reduced to
// their packet, so "/ch1/scene.odt" finds "/ch1/scene". "/" is the root of
// c's tree and always exists.
func Get(c Container, p string) (Node, error) {
	logical := resolve(c.Path(), packet.Strip(p))
	n := c.at(logical)
	if logical == "/" {
		return n, nil
	}

	files, err := packet.Files(n.DiskPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
		return nil, fmt.Errorf("project: get %s: %w", logical, err)
	}
	if len(files) == 0 {
		return nil, apperr.New(apperr.ErrNotFound, "document %s", logical)
	}
	return n, nil
}

// Rename gives n a new base name, moving its whole packet.
func Rename(n Node, newName string) error {
	r, ok := n.(Renameable)
	if !ok {
		return apperr.New(apperr.ErrCannotModifyRoot, "rename")
	}
	if err := packet.ValidateName(newName); err != nil {
		return err
	}
	return relocate(r, path.Join(path.Dir(r.Path()), newName))
}

// MoveInto makes source a child of target, keeping its base name.
func MoveInto(target Container, source Node) error {
	r, ok := source.(Renameable)
	if !ok {
		return apperr.New(apperr.ErrCannotModifyRoot, "move")
	}
	if !sameTree(target, r) {
		return apperr.New(apperr.ErrInvalidArgument, "cannot move %s across trees", r.Path())
	}
	src, dst := r.Path(), target.Path()
	if dst == src || strings.HasPrefix(dst, src+"/") {
		return apperr.New(apperr.ErrCannotMoveIntoSelf, "%s into %s", src, dst)
	}
	return relocate(r, path.Join(dst, r.BaseName()))
}

func sameTree(c Container, n Node) bool {
	other, ok := n.(Container)
	return ok && other.treeDir() == c.treeDir()
}

func relocate(r Renameable, logical string) error {
	if logical == r.Path() {
		return nil
	}
	oldDisk := r.DiskPath()
	moved := r.(Container).at(logical)
	if err := packet.Rename(oldDisk, moved.DiskPath()); err != nil {
		return err
	}
	r.Project().cache.Forget(oldDisk)
	r.setPath(logical)
	return nil
}

// TreeRoot returns the root of c's tree: the project root for documents,
// the tag root for tags.
func TreeRoot(c Container) Container {
	return c.at("/").(Container)
}
