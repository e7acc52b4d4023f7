// Package pattern resolves document selectors (globs, regular expressions
// and compiled patterns) to lists of documents.
//
// A glob is split on "/" into segments that are matched one tree level at
// a time, so only the directories a pattern can reach are ever listed:
//
//	/ch1/scene      literal segments, looked up directly
//	ch*/s?ene       wildcards, matched against each level's children
//	{ch1,ch2}/*     braces, expanded into one sequence per alternative
//	ch1/**/draft    any depth, matched against a recursive listing
package pattern

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/project"
)

type kind int

const (
	literal kind = iota
	wildcard
	expr
	anyDepth
)

// Segment matches one path component, or any number of them.
type Segment struct {
	kind kind
	text string
	re   *regexp.Regexp
}

// Literal matches the component name exactly.
func Literal(name string) Segment { return Segment{kind: literal, text: name} }

// Regexp matches components whose name re matches.
func Regexp(re *regexp.Regexp) Segment { return Segment{kind: expr, re: re} }

// AnyDepth matches zero or more components.
func AnyDepth() Segment { return Segment{kind: anyDepth, text: "**"} }

// Wildcard matches components against a glob (*, ?, [...]).
func Wildcard(glob string) (Segment, error) {
	if !doublestar.ValidatePattern(glob) {
		return Segment{}, apperr.New(apperr.ErrInvalidArgument, "bad glob %q", glob)
	}
	return Segment{kind: wildcard, text: glob}, nil
}

func (s Segment) matches(name string) bool {
	switch s.kind {
	case literal:
		return s.text == name
	case wildcard:
		ok, err := doublestar.Match(s.text, name)
		return err == nil && ok
	case expr:
		return s.re.MatchString(name)
	}
	return false
}

func (s Segment) String() string {
	if s.kind == expr {
		return "/" + s.re.String() + "/"
	}
	return s.text
}

// Sequence is a list of segments starting either at the tree root
// (Absolute) or at the node the pattern is resolved from.
type Sequence struct {
	Absolute bool
	Segments []Segment
}

// Pattern is a disjunction of sequences. Its matches are the
// concatenation of every sequence's matches.
type Pattern struct {
	Sequences []Sequence
}

// descendants is the type of Descendants.
type descendants struct{}

// Descendants selects every node below the starting one.
var Descendants = descendants{}

// Compile parses a glob. Braces may nest and may span "/"; "." segments are
// dropped and ".." steps up a level.
func Compile(glob string) (Pattern, error) {
	alts, err := expandBraces(glob)
	if err != nil {
		return Pattern{}, err
	}
	var p Pattern
	for _, alt := range alts {
		seq := Sequence{Absolute: strings.HasPrefix(alt, "/")}
		for _, part := range strings.Split(alt, "/") {
			switch {
			case part == "" || part == ".":
			case part == "**":
				seq.Segments = append(seq.Segments, AnyDepth())
			case strings.ContainsAny(part, `*?[\`):
				seg, err := Wildcard(part)
				if err != nil {
					return Pattern{}, err
				}
				seq.Segments = append(seq.Segments, seg)
			default:
				seq.Segments = append(seq.Segments, Literal(part))
			}
		}
		p.Sequences = append(p.Sequences, seq)
	}
	return p, nil
}

// expandBraces rewrites "a{b,c{d,e}}f" into "abf", "acdf", "acef".
func expandBraces(s string) ([]string, error) {
	open := -1
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			if depth == 0 {
				open = i
			}
			depth++
		case '}':
			if depth == 0 {
				return nil, apperr.New(apperr.ErrInvalidArgument, "unbalanced '}' in %q", s)
			}
			depth--
			if depth > 0 {
				continue
			}
			prefix, body, suffix := s[:open], s[open+1:i], s[i+1:]
			var out []string
			for _, alt := range splitTopLevel(body) {
				expanded, err := expandBraces(prefix + alt + suffix)
				if err != nil {
					return nil, err
				}
				out = append(out, expanded...)
			}
			return out, nil
		}
	}
	if depth != 0 {
		return nil, apperr.New(apperr.ErrInvalidArgument, "unbalanced '{' in %q", s)
	}
	return []string{s}, nil
}

func splitTopLevel(body string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, body[start:i])
				start = i + 1
			}
		}
	}
	return append(out, body[start:])
}

// Resolve returns the nodes selected by sel, starting at from. sel is a
// glob string, a Pattern, a *regexp.Regexp (matched against the names of
// from's direct children) or Descendants. Anything else is
// apperr.ErrInvalidArgument.
func Resolve(ctx context.Context, from project.Container, sel any) ([]project.Node, error) {
	switch v := sel.(type) {
	case string:
		p, err := Compile(v)
		if err != nil {
			return nil, err
		}
		return p.Resolve(ctx, from)
	case Pattern:
		return v.Resolve(ctx, from)
	case *Pattern:
		return v.Resolve(ctx, from)
	case *regexp.Regexp:
		return project.List(ctx, from, func(_ context.Context, n project.Node) (bool, bool, error) {
			return v.MatchString(n.BaseName()), false, nil
		})
	case descendants:
		return project.List(ctx, from, project.Recursive)
	default:
		return nil, apperr.New(apperr.ErrInvalidArgument, "cannot resolve documents from %T", sel)
	}
}

// Resolve matches every sequence starting at from (or at from's tree root
// for absolute sequences) and concatenates the results. Nodes matched by
// more than one sequence appear more than once; see Unique.
func (p Pattern) Resolve(ctx context.Context, from project.Container) ([]project.Node, error) {
	var out []project.Node
	for _, seq := range p.Sequences {
		start := from
		if seq.Absolute {
			start = project.TreeRoot(from)
		}
		found, err := resolveSegments(ctx, start, seq.Segments)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func resolveSegments(ctx context.Context, start project.Container, segs []Segment) ([]project.Node, error) {
	if len(segs) == 0 {
		return []project.Node{start}, nil
	}
	seg, rest := segs[0], segs[1:]

	switch seg.kind {
	case literal:
		n, err := project.Get(start, seg.text)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return descend(ctx, n, rest)

	case anyDepth:
		all, err := project.List(ctx, start, project.Recursive)
		if err != nil {
			return nil, err
		}
		prefix := strings.TrimSuffix(start.Path(), "/") + "/"
		var out []project.Node
		for _, n := range all {
			rel := strings.Split(strings.TrimPrefix(n.Path(), prefix), "/")
			if matchComponents(rel, segs) {
				out = append(out, n)
			}
		}
		return out, nil

	default:
		kids, err := project.List(ctx, start, func(_ context.Context, n project.Node) (bool, bool, error) {
			return seg.matches(n.BaseName()), false, nil
		})
		if err != nil {
			return nil, err
		}
		var out []project.Node
		for _, n := range kids {
			found, err := descend(ctx, n, rest)
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
		return out, nil
	}
}

func descend(ctx context.Context, n project.Node, rest []Segment) ([]project.Node, error) {
	if len(rest) == 0 {
		return []project.Node{n}, nil
	}
	c, ok := n.(project.Container)
	if !ok {
		return nil, nil
	}
	return resolveSegments(ctx, c, rest)
}

// matchComponents reports whether a relative path matches segs in full.
// AnyDepth consumes zero or more components.
func matchComponents(comps []string, segs []Segment) bool {
	if len(segs) == 0 {
		return len(comps) == 0
	}
	seg := segs[0]
	if seg.kind == anyDepth {
		for skip := 0; skip <= len(comps); skip++ {
			if matchComponents(comps[skip:], segs[1:]) {
				return true
			}
		}
		return false
	}
	if len(comps) == 0 {
		return false
	}
	if seg.kind == literal && seg.text == ".." {
		return false
	}
	return seg.matches(comps[0]) && matchComponents(comps[1:], segs[1:])
}

// Unique drops repeated nodes, keeping the first occurrence of each path.
func Unique(nodes []project.Node) []project.Node {
	seen := make(map[string]struct{}, len(nodes))
	out := make([]project.Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.Path()]; ok {
			continue
		}
		seen[n.Path()] = struct{}{}
		out = append(out, n)
	}
	return out
}
