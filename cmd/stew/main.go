package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/stew/internal"
	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/project"
	pkgconfig "github.com/starford/stew/pkg/config"
)

type configKey struct{}

// setup loads the configuration, applies the global flags and installs the
// logger. Commands read the configuration back with configFrom.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOrDefault(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.String("project"); dir != "" {
		cfg.Project.Path = dir
	}
	if level := cmd.String("log-level"); level != "" {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, apperr.New(apperr.ErrInvalidArgument, "log level %q", level)
		}
	}

	slog.SetDefault(cfg.App.Logger(cmd.Root().ErrWriter))
	return context.WithValue(ctx, configKey{}, cfg), nil
}

func configFrom(ctx context.Context) *internal.Config {
	if cfg, ok := ctx.Value(configKey{}).(*internal.Config); ok {
		return cfg
	}
	return internal.NewDefaultConfig()
}

func openProject(ctx context.Context) (*project.Project, error) {
	cfg := configFrom(ctx)
	return project.Open(cfg.Project.Path, cfg.Project.Search)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:   "stew",
		Usage:  "Organize a writing project as a tree of documents and publish it",
		Before: setup,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "stew.yaml",
				Value:       "stew.yaml",
				Sources:     cli.EnvVars("STEW_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "Project directory (default: search upwards from the working directory)",
				Sources: cli.EnvVars("STEW_PROJECT"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			listCommand(),
			addCommand(),
			renameCommand(),
			moveCommand(),
			orderCommand(),
			propCommand(),
			statusCommand(),
			tagCommand(),
			refCommand(),
			categoryCommand(),
			ensureCommand(),
			backupCommand(),
			publishCommand(),
			wordsCommand(),
			watchCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("kind", apperr.Kind(err)), slog.String("error", err.Error()))
		os.Exit(1)
	}
}
