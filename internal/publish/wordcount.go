package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/project"
)

// Apostrophes and hyphens stay inside a word; a run of CJK characters
// counts once.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_'\x{2019}-]+`)

// CountWords counts the words in s.
func CountWords(s string) int {
	return len(wordPattern.FindAllStringIndex(s, -1))
}

// WordCount counts the words in the primary files Publish would use for
// from. Files in a convert extension are exported to plain text with
// LibreOffice first; markup in the others is dropped. Documents with an
// ambiguous primary file are skipped. A dry run starts no tools and
// leaves converted files out of the total.
func WordCount(ctx context.Context, from project.Container, opts Options) (total int, err error) {
	r := newRun(from, opts, "stew-wordcount-")
	defer func() {
		if cerr := r.cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := r.loadManifest(); err != nil {
		return 0, err
	}
	if err := r.collect(ctx); err != nil {
		return 0, err
	}
	r.report("counting words")
	for _, n := range r.docs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		words, err := r.countDoc(ctx, n)
		if err != nil {
			return 0, err
		}
		total += words
	}
	r.opts.Logger.Info("publish: counted words", slog.String("from", from.Path()), slog.Int("words", total))
	return total, nil
}

func (r *run) countDoc(ctx context.Context, n project.Node) (int, error) {
	pb, ok := n.(project.PrimaryBearing)
	if !ok {
		return 0, nil
	}
	primary, err := project.SelectPrimary(pb, r.manifest.DefaultDocExtension)
	if errors.Is(err, apperr.ErrAmbiguousSelection) {
		r.report("skipping %s: %v", n.Path(), err)
		return 0, nil
	}
	if err != nil || primary == "" {
		return 0, err
	}

	if r.converts(primary) {
		file, err := r.convert(ctx, primary, toText)
		if err != nil || r.opts.DryRun {
			return 0, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return 0, fmt.Errorf("publish: read %s: %w", file, err)
		}
		return r.counted(n, CountWords(string(data))), nil
	}

	data, err := os.ReadFile(primary)
	if err != nil {
		return 0, fmt.Errorf("publish: read %s: %w", primary, err)
	}
	text, err := plainText(data)
	if err != nil {
		return 0, fmt.Errorf("publish: read %s: %w", primary, err)
	}
	return r.counted(n, CountWords(text)), nil
}

func (r *run) counted(n project.Node, words int) int {
	r.report("%s: %d words", n.Path(), words)
	return words
}

// plainText returns the text content of an HTML document. Plain text and
// markdown come back unchanged apart from whitespace.
func plainText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	extractText(doc, &sb)
	return sb.String(), nil
}

func extractText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb)
	}
}
