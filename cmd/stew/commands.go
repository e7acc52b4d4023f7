package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/urfave/cli/v3"

	"github.com/starford/stew/internal"
	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/pattern"
	"github.com/starford/stew/internal/project"
	"github.com/starford/stew/internal/props"
	"github.com/starford/stew/internal/publish"
)

func out(cmd *cli.Command, format string, args ...any) {
	fmt.Fprintf(cmd.Root().Writer, format+"\n", args...)
}

// args returns the positional arguments, failing when fewer than want were
// given.
func args(cmd *cli.Command, want int) ([]string, error) {
	a := cmd.Args().Slice()
	if len(a) < want {
		return nil, apperr.New(apperr.ErrInvalidArgument, "%s needs %d argument(s): %s", cmd.Name, want, cmd.ArgsUsage)
	}
	return a, nil
}

// withDoc opens the project and looks up the document named by the first
// argument.
func withDoc(ctx context.Context, cmd *cli.Command, want int, fn func(p *project.Project, n project.Node, rest []string) error) error {
	a, err := args(cmd, want)
	if err != nil {
		return err
	}
	p, err := openProject(ctx)
	if err != nil {
		return err
	}
	n, err := project.Get(p.Root(), a[0])
	if err != nil {
		return err
	}
	return fn(p, n, a[1:])
}

func asContainer(n project.Node) (project.Container, error) {
	c, ok := n.(project.Container)
	if !ok {
		return nil, apperr.New(apperr.ErrInvalidArgument, "%s cannot hold documents", n.Path())
	}
	return c, nil
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create a project",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ext", Usage: "Default document extension", Value: "md"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.Args().First()
			if dir == "" {
				dir = configFrom(ctx).Project.Path
			}
			p, err := project.Init(dir, &props.Manifest{DefaultDocExtension: cmd.String("ext")})
			if err != nil {
				return err
			}
			out(cmd, "initialized %s", p.Dir())
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List documents, optionally those matching a pattern",
		ArgsUsage: "[pattern]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "Include every descendant"},
			&cli.BoolFlag{Name: "tags", Usage: "List tags instead of documents"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := openProject(ctx)
			if err != nil {
				return err
			}
			var from project.Container = p.Root()
			if cmd.Bool("tags") {
				from = p.Tags()
			}

			var nodes []project.Node
			switch {
			case cmd.Args().Present():
				nodes, err = pattern.Resolve(ctx, from, cmd.Args().First())
				nodes = pattern.Unique(nodes)
			case cmd.Bool("recursive"):
				nodes, err = project.List(ctx, from, project.Recursive)
			default:
				nodes, err = project.List(ctx, from, project.NonRecursive)
			}
			if err != nil {
				return err
			}
			for _, n := range nodes {
				out(cmd, "%s", n.Path())
			}
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create a document",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ext", Usage: "Also create the primary file with this extension"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 1)
			if err != nil {
				return err
			}
			p, err := openProject(ctx)
			if err != nil {
				return err
			}
			n, err := project.Add(p.Root(), a[0])
			if err != nil {
				return err
			}
			if ext := cmd.String("ext"); ext != "" {
				if _, err := n.(*project.Doc).EnsurePrimary(ext); err != nil {
					return err
				}
			}
			out(cmd, "%s", n.Path())
			return nil
		},
	}
}

func renameCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a document and its whole packet",
		ArgsUsage: "<doc> <name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withDoc(ctx, cmd, 2, func(_ *project.Project, n project.Node, rest []string) error {
				if err := project.Rename(n, rest[0]); err != nil {
					return err
				}
				out(cmd, "%s", n.Path())
				return nil
			})
		},
	}
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move the documents matching a pattern into another document",
		ArgsUsage: "<pattern> <target>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 2)
			if err != nil {
				return err
			}
			p, err := openProject(ctx)
			if err != nil {
				return err
			}
			t, err := project.Get(p.Root(), a[1])
			if err != nil {
				return err
			}
			target, err := asContainer(t)
			if err != nil {
				return err
			}
			nodes, err := pattern.Resolve(ctx, p.Root(), a[0])
			if err != nil {
				return err
			}
			for _, n := range pattern.Unique(nodes) {
				if err := project.MoveInto(target, n); err != nil {
					return err
				}
				out(cmd, "%s", n.Path())
			}
			return nil
		},
	}
}

func orderCommand() *cli.Command {
	return &cli.Command{
		Name:      "order",
		Usage:     "Change a document's place among its siblings",
		ArgsUsage: "<doc> first|last|next|previous|before|after [sibling]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withDoc(ctx, cmd, 2, func(p *project.Project, n project.Node, rest []string) error {
				pos, err := props.ParsePosition(rest[0])
				if err != nil {
					return apperr.New(apperr.ErrInvalidArgument, "%v", err)
				}
				relative := ""
				if len(rest) > 1 {
					relative = rest[1]
				}
				if pos.NeedsRelative() && relative == "" {
					return apperr.New(apperr.ErrInvalidArgument, "%s needs a sibling", rest[0])
				}
				parent, err := project.Get(p.Root(), path.Dir(n.Path()))
				if err != nil {
					return err
				}
				doc, err := parent.Properties()
				if err != nil {
					return err
				}
				doc.Index.Order(n.BaseName(), pos, relative)
				return doc.Save()
			})
		},
	}
}

func propCommand() *cli.Command {
	return &cli.Command{
		Name:  "prop",
		Usage: "Read or change document properties",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print a property as JSON",
				ArgsUsage: "<doc> <name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDoc(ctx, cmd, 2, func(_ *project.Project, n project.Node, rest []string) error {
						doc, err := n.Properties()
						if err != nil {
							return err
						}
						value, err := lookupProperty(doc, rest[0])
						if err != nil {
							return err
						}
						out(cmd, "%s", value)
						return nil
					})
				},
			},
			{
				Name:      "set",
				Usage:     "Set a property to a JSON value (plain text is a string, null deletes)",
				ArgsUsage: "<doc> <name> <value>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDoc(ctx, cmd, 3, func(_ *project.Project, n project.Node, rest []string) error {
						doc, err := n.Properties()
						if err != nil {
							return err
						}
						if err := doc.Set(rest[0], parseValue(rest[1])); err != nil {
							return err
						}
						return doc.Save()
					})
				},
			},
		},
	}
}

// lookupProperty returns the JSON text of one top-level property, managed
// or not.
func lookupProperty(doc *props.Document, name string) (json.RawMessage, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	value, ok := fields[name]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "property %q", name)
	}
	return value, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func statusCommand() *cli.Command {
	step := func(forward bool) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			return withDoc(ctx, cmd, 1, func(p *project.Project, n project.Node, _ []string) error {
				m, err := p.Manifest()
				if err != nil {
					return err
				}
				doc, err := n.Properties()
				if err != nil {
					return err
				}
				var status string
				if forward {
					status = doc.IncStatus(m)
				} else {
					status = doc.DecStatus(m)
				}
				if err := doc.Save(); err != nil {
					return err
				}
				out(cmd, "%s", status)
				return nil
			})
		}
	}
	return &cli.Command{
		Name:  "status",
		Usage: "Move a document along the project's status list",
		Commands: []*cli.Command{
			{Name: "inc", Usage: "Next status", ArgsUsage: "<doc>", Action: step(true)},
			{Name: "dec", Usage: "Previous status", ArgsUsage: "<doc>", Action: step(false)},
		},
	}
}

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:  "tag",
		Usage: "Tag documents",
		Commands: []*cli.Command{
			{
				Name:      "add",
				ArgsUsage: "<doc> <tag>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDoc(ctx, cmd, 2, func(p *project.Project, n project.Node, rest []string) error {
						if _, err := project.Add(p.Tags(), rest[0]); err != nil && !errors.Is(err, apperr.ErrAlreadyExists) {
							return err
						}
						doc, err := n.Properties()
						if err != nil {
							return err
						}
						doc.AddTag(rest[0])
						return doc.Save()
					})
				},
			},
			{
				Name:      "remove",
				ArgsUsage: "<doc> <tag>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDoc(ctx, cmd, 2, func(_ *project.Project, n project.Node, rest []string) error {
						doc, err := n.Properties()
						if err != nil {
							return err
						}
						doc.RemoveTag(rest[0])
						return doc.Save()
					})
				},
			},
		},
	}
}

func refCommand() *cli.Command {
	return &cli.Command{
		Name:  "ref",
		Usage: "Record references between documents",
		Commands: []*cli.Command{
			{
				Name:      "add",
				ArgsUsage: "<doc> <target> [title]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDoc(ctx, cmd, 2, func(p *project.Project, n project.Node, rest []string) error {
						target, err := project.Get(p.Root(), rest[0])
						if err != nil {
							return err
						}
						title := ""
						if len(rest) > 1 {
							title = rest[1]
						}
						return project.AddReference(n, target, title)
					})
				},
			},
			{
				Name:      "remove",
				ArgsUsage: "<doc> <target>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDoc(ctx, cmd, 2, func(p *project.Project, n project.Node, rest []string) error {
						target, err := project.Get(p.Root(), rest[0])
						if err != nil {
							return err
						}
						removed, err := project.RemoveReferences(n, target)
						if err != nil {
							return err
						}
						out(cmd, "removed %d", removed)
						return nil
					})
				},
			},
		},
	}
}

func categoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "category",
		Usage: "Manage publish categories",
		Commands: []*cli.Command{
			{
				Name:      "add",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := args(cmd, 1)
					if err != nil {
						return err
					}
					p, err := openProject(ctx)
					if err != nil {
						return err
					}
					m, err := p.Manifest()
					if err != nil {
						return err
					}
					m.Categories.Add(a[0])
					return m.Save()
				},
			},
			{
				Name:      "set",
				Usage:     "Set a category rule, e.g. publishTitle true",
				ArgsUsage: "<name> <rule> <value>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := args(cmd, 3)
					if err != nil {
						return err
					}
					p, err := openProject(ctx)
					if err != nil {
						return err
					}
					m, err := p.Manifest()
					if err != nil {
						return err
					}
					c, ok := m.Categories.Get(a[0])
					if !ok {
						return apperr.New(apperr.ErrNotFound, "category %q", a[0])
					}
					if err := c.Set(a[1], parseValue(a[2])); err != nil {
						return err
					}
					return m.Save()
				},
			},
		},
	}
}

func ensureCommand() *cli.Command {
	type kind struct {
		name  string
		usage string
		fn    func(n project.Node, ext string) (string, error)
	}
	kinds := []kind{
		{"primary", "the primary file", func(n project.Node, ext string) (string, error) {
			pb, ok := n.(project.PrimaryBearing)
			if !ok {
				return "", apperr.New(apperr.ErrInvalidArgument, "%s has no primary file", n.Path())
			}
			return pb.EnsurePrimary(ext)
		}},
		{"notes", "the notes file", func(n project.Node, ext string) (string, error) {
			e, ok := n.(interface{ EnsureNotes(string) (string, error) })
			if !ok {
				return "", apperr.New(apperr.ErrInvalidArgument, "%s has no notes", n.Path())
			}
			return e.EnsureNotes(ext)
		}},
		{"thumbnail", "the thumbnail file", func(n project.Node, ext string) (string, error) {
			d, ok := n.(*project.Doc)
			if !ok {
				return "", apperr.New(apperr.ErrInvalidArgument, "%s has no thumbnail", n.Path())
			}
			return d.EnsureThumbnail(ext)
		}},
		{"synopsis", "the synopsis file", func(n project.Node, _ string) (string, error) {
			d, ok := n.(*project.Doc)
			if !ok {
				return "", apperr.New(apperr.ErrInvalidArgument, "%s has no synopsis", n.Path())
			}
			return d.EnsureSynopsis()
		}},
	}

	var commands []*cli.Command
	for _, k := range kinds {
		commands = append(commands, &cli.Command{
			Name:      k.name,
			Usage:     "Print the path of " + k.usage + ", creating it from a template if needed",
			ArgsUsage: "<doc> [ext]",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withDoc(ctx, cmd, 1, func(_ *project.Project, n project.Node, rest []string) error {
					ext := ""
					if len(rest) > 0 {
						ext = rest[0]
					}
					file, err := k.fn(n, ext)
					if err != nil {
						return err
					}
					out(cmd, "%s", file)
					return nil
				})
			},
		})
	}
	return &cli.Command{
		Name:     "ensure",
		Usage:    "Locate or create a document's files",
		Commands: commands,
	}
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Usage:     "Copy a document's primary files to timestamped backups",
		ArgsUsage: "<doc> [id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "list", Aliases: []string{"l"}, Usage: "List existing backups instead"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withDoc(ctx, cmd, 1, func(_ *project.Project, n project.Node, rest []string) error {
				d, ok := n.(*project.Doc)
				if !ok {
					return apperr.New(apperr.ErrCannotModifyRoot, "the project root has no primary file")
				}
				var (
					files []string
					err   error
				)
				if cmd.Bool("list") {
					files, err = d.Backups("")
				} else {
					id := ""
					if len(rest) > 0 {
						id = rest[0]
					}
					files, err = d.BackupPrimary("", id)
				}
				for _, f := range files {
					out(cmd, "%s", f)
				}
				return err
			})
		},
	}
}

// runnerKey lets tests replace the external tools.
type runnerKey struct{}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Compile the published documents below a document (default: the whole project)",
		ArgsUsage: "[doc]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Report the steps without running them"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := openProject(ctx)
			if err != nil {
				return err
			}
			var from project.Container = p.Root()
			if doc := cmd.Args().First(); doc != "" {
				n, err := project.Get(p.Root(), doc)
				if err != nil {
					return err
				}
				if from, err = asContainer(n); err != nil {
					return err
				}
			}

			opts := configFrom(ctx).Publish.Options()
			opts.Output = cmd.String("output")
			opts.DryRun = cmd.Bool("dry-run")
			opts.Logger = slog.Default()
			opts.Report = func(msg string) { out(cmd, "%s", msg) }
			if r, ok := ctx.Value(runnerKey{}).(publish.Runner); ok {
				opts.Runner = r
			}

			output, err := publish.Publish(ctx, from, opts)
			if err != nil {
				return err
			}
			out(cmd, "%s", output)
			return nil
		},
	}
}

func wordsCommand() *cli.Command {
	return &cli.Command{
		Name:      "words",
		Usage:     "Count the words that publish would include",
		ArgsUsage: "[doc]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Report the steps without running LibreOffice"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := openProject(ctx)
			if err != nil {
				return err
			}
			var from project.Container = p.Root()
			if doc := cmd.Args().First(); doc != "" {
				n, err := project.Get(p.Root(), doc)
				if err != nil {
					return err
				}
				if from, err = asContainer(n); err != nil {
					return err
				}
			}

			opts := configFrom(ctx).Publish.Options()
			opts.DryRun = cmd.Bool("dry-run")
			opts.Logger = slog.Default()
			if cmd.Bool("dry-run") {
				opts.Report = func(msg string) { out(cmd, "%s", msg) }
			}
			if r, ok := ctx.Value(runnerKey{}).(publish.Runner); ok {
				opts.Runner = r
			}

			total, err := publish.WordCount(ctx, from, opts)
			if err != nil {
				return err
			}
			out(cmd, "%d", total)
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the project, refreshing caches and republishing on change",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "publish", Usage: "Pattern of documents to republish on change"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Republish output file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			if pat := cmd.String("publish"); pat != "" {
				cfg.Watch.Publish = pat
			}
			if output := cmd.String("output"); output != "" {
				cfg.Watch.Output = output
			}
			opts := []internal.Option{internal.WithConfig(cfg), internal.WithLogger(slog.Default())}
			if r, ok := ctx.Value(runnerKey{}).(publish.Runner); ok {
				opts = append(opts, internal.WithRunner(r))
			}
			return internal.Run(ctx, opts...)
		},
	}
}
