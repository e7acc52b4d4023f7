// Package publish assembles the publishable documents below a node into a
// single output file.
//
// Publishing runs in stages: the manifest decides the output format, a
// recursive listing collects every document whose publish flag is set,
// each document contributes its title heading, primary file and markers
// according to its category's rules, and the compiler (pandoc) joins the
// staged files. Primary files the compiler cannot read are converted to
// HTML with LibreOffice first. Staged files live in one temporary
// directory per run, removed when the run ends. WordCount reuses the same
// selection to count words.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/packet"
	"github.com/starford/stew/internal/project"
	"github.com/starford/stew/internal/props"
)

// PublishedDir holds default outputs, inside the project directory.
const PublishedDir = "_published"

const (
	// Marker is the markdown separator staged between sections.
	Marker = "* * *\n"

	defaultConverter = "libreoffice"
	defaultCompiler  = "pandoc"
	defaultExt       = "html"
)

// Options controls a publish run. The zero value publishes to the default
// output with the tools found on PATH.
type Options struct {
	// Output is the file to write. Without an extension the manifest's
	// publish extension is added; empty means
	// <project>/_published/<timestamp>.<ext>.
	Output string
	// DryRun reports every step but writes nothing and starts no tools.
	DryRun bool
	// Report receives progress messages.
	Report func(string)
	Logger *slog.Logger
	Runner Runner

	Converter         string
	Compiler          string
	ConvertExtensions []string
	// TempDir is where the per-run directory is created, os.TempDir()
	// when empty.
	TempDir string
}

func (o *Options) defaults() {
	if o.Report == nil {
		o.Report = func(string) {}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Runner == nil {
		o.Runner = ExecRunner{Logger: o.Logger}
	}
	if o.Converter == "" {
		o.Converter = defaultConverter
	}
	if o.Compiler == "" {
		o.Compiler = defaultCompiler
	}
	if o.ConvertExtensions == nil {
		o.ConvertExtensions = DefaultConvertExtensions
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
}

// run is the state of one publish.
type run struct {
	opts     Options
	from     project.Container
	manifest *props.Manifest
	output   string

	docs  []project.Node
	files []string

	tempRoot string
	created  bool
	nextID   int

	lastCategory *string
	counts       map[string]int
}

// Publish compiles from and its published descendants into one file and
// returns the file's path. from itself is included unless it is the root.
// A dry run returns the path a real run would write.
func Publish(ctx context.Context, from project.Container, opts Options) (output string, err error) {
	r := newRun(from, opts, "stew-publish-")
	defer func() {
		if cerr := r.cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := r.loadManifest(); err != nil {
		return "", err
	}
	if err := r.collect(ctx); err != nil {
		return "", err
	}
	if err := r.gather(ctx); err != nil {
		return "", err
	}
	if err := r.compile(ctx); err != nil {
		return "", err
	}
	return r.output, nil
}

func newRun(from project.Container, opts Options, prefix string) *run {
	opts.defaults()
	r := &run{
		opts:     opts,
		from:     from,
		tempRoot: filepath.Join(opts.TempDir, prefix+uuid.NewString()),
		counts:   make(map[string]int),
	}
	if opts.DryRun {
		r.report("dry run: nothing will be written")
	}
	return r
}

func (r *run) report(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.opts.Logger.Debug("publish: "+msg, slog.String("from", r.from.Path()))
	r.opts.Report(msg)
}

func (r *run) loadManifest() error {
	r.report("loading manifest")
	m, err := r.from.Project().Manifest()
	if err != nil {
		return err
	}
	r.manifest = m

	ext := m.DefaultPublishExtension
	if ext == "" {
		ext = m.DefaultDocExtension
	}
	if ext == "" {
		ext = defaultExt
	}
	ext = "." + strings.TrimPrefix(ext, ".")

	switch {
	case r.opts.Output == "":
		name := packet.BackupID(time.Now()) + ext
		r.output = filepath.Join(r.from.Project().Dir(), PublishedDir, name)
	case filepath.Ext(r.opts.Output) == "":
		r.output = r.opts.Output + ext
	default:
		r.output = r.opts.Output
	}
	return nil
}

func (r *run) collect(ctx context.Context) error {
	r.report("listing documents")
	docs, err := project.List(ctx, r.from, publishable)
	if err != nil {
		return err
	}
	if r.from.Path() != "/" {
		docs = append([]project.Node{r.from}, docs...)
	}
	r.docs = docs
	return nil
}

// publishable accepts and descends into documents marked for publishing.
func publishable(_ context.Context, n project.Node) (bool, bool, error) {
	p, err := n.Properties()
	if err != nil {
		return false, false, err
	}
	return p.IsPublished(), p.IsPublished(), nil
}

func (r *run) gather(ctx context.Context) error {
	r.report("gathering files")
	for _, n := range r.docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.gatherDoc(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) gatherDoc(ctx context.Context, n project.Node) error {
	r.report("processing %s", n.Path())
	p, err := n.Properties()
	if err != nil {
		return err
	}
	name := p.CategoryIn(r.manifest)
	var rules props.Rules
	if c := r.manifest.Category(name); c != nil {
		rules = c.Rules
	}
	rules = rules.Overlay(p.Rules)

	if rules.MarkerBetween() && r.lastCategory != nil && *r.lastCategory == name {
		if err := r.stageText(Marker); err != nil {
			return err
		}
	}
	if rules.MarkerBefore() {
		if err := r.stageText(Marker); err != nil {
			return err
		}
	}
	if rules.WantsTitle() {
		r.counts[name]++
		title := Prefix(rules.TitlePrefix(), r.counts[name]) + p.TitleOr(n.BaseName())
		if err := r.stageText(Heading(rules.TitleLevel(), title)); err != nil {
			return err
		}
	}
	if err := r.stagePrimary(ctx, n); err != nil {
		return err
	}
	if rules.MarkerAfter() {
		if err := r.stageText(Marker); err != nil {
			return err
		}
	}
	r.lastCategory = &name
	return nil
}

// Heading renders a markdown heading of the given level.
func Heading(level int, title string) string {
	return strings.Repeat("#", level) + " " + title + "\n"
}

func (r *run) tempName(ext string) string {
	r.nextID++
	return filepath.Join(r.tempRoot, fmt.Sprintf("%04d%s", r.nextID, ext))
}

func (r *run) ensureTempRoot() error {
	if r.created || r.opts.DryRun {
		return nil
	}
	if err := os.Mkdir(r.tempRoot, 0o700); err != nil {
		return fmt.Errorf("publish: create temp dir: %w", err)
	}
	r.created = true
	return nil
}

func (r *run) stageText(text string) error {
	file := r.tempName(".md")
	r.report("staging %q", strings.TrimSpace(text))
	if !r.opts.DryRun {
		if err := r.ensureTempRoot(); err != nil {
			return err
		}
		if err := os.WriteFile(file, []byte(text), 0o600); err != nil {
			return fmt.Errorf("publish: stage: %w", err)
		}
	}
	r.files = append(r.files, file)
	return nil
}

func (r *run) stagePrimary(ctx context.Context, n project.Node) error {
	pb, ok := n.(project.PrimaryBearing)
	if !ok {
		return nil
	}
	primary, err := project.SelectPrimary(pb, r.manifest.DefaultDocExtension)
	if err != nil {
		return err
	}
	if primary == "" {
		r.report("%s has no primary file", n.Path())
		return nil
	}
	if !r.converts(primary) {
		r.report("staging %s", primary)
		r.files = append(r.files, primary)
		return nil
	}
	file, err := r.convert(ctx, primary, toHTML)
	if err != nil {
		return err
	}
	r.files = append(r.files, file)
	return nil
}

func (r *run) converts(file string) bool {
	return slices.Contains(r.opts.ConvertExtensions, strings.ToLower(filepath.Ext(file)))
}

// convert exports file into its own directory under the temp root and
// returns the exported file. Dry runs only report the command.
func (r *run) convert(ctx context.Context, file string, conv conversion) (string, error) {
	outDir := r.tempName("-convert")
	profile := filepath.Join(r.tempRoot, "profile")
	args := conv.args(profile, outDir, file)
	r.report("converting %s: %s %s", file, r.opts.Converter, strings.Join(args, " "))
	if !r.opts.DryRun {
		if err := r.ensureTempRoot(); err != nil {
			return "", err
		}
		if err := os.Mkdir(outDir, 0o700); err != nil {
			return "", fmt.Errorf("publish: create conversion dir: %w", err)
		}
		if err := r.opts.Runner.Run(ctx, r.opts.Converter, args...); err != nil {
			return "", err
		}
	}
	return conv.output(outDir, file), nil
}

func (r *run) compile(ctx context.Context) error {
	if len(r.files) == 0 {
		return apperr.New(apperr.ErrNotFound, "nothing to publish under %s", r.from.Path())
	}
	args := compileArgs(r.output, r.files)
	r.report("compiling: %s %s", r.opts.Compiler, strings.Join(args, " "))
	if r.opts.DryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.output), 0o755); err != nil {
		return fmt.Errorf("publish: create output dir: %w", err)
	}
	if err := r.opts.Runner.Run(ctx, r.opts.Compiler, args...); err != nil {
		return err
	}
	r.opts.Logger.Info("publish: compiled", slog.String("output", r.output), slog.Int("files", len(r.files)))
	return nil
}

func (r *run) cleanup() error {
	if !r.created {
		return nil
	}
	r.report("removing temporary files")
	if err := os.RemoveAll(r.tempRoot); err != nil {
		return fmt.Errorf("publish: remove temp dir: %w", err)
	}
	return nil
}
