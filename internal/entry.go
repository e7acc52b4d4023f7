// Package internal provides the application configuration and the
// long-running watch mode.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/pattern"
	"github.com/starford/stew/internal/project"
	"github.com/starford/stew/internal/publish"
	"github.com/starford/stew/internal/watch"
)

// Run watches the configured project until ctx is cancelled or the process
// receives SIGINT or SIGTERM. Every batch of changes clears the project's
// caches and, when configured, republishes.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = cfg.App.Logger(os.Stderr)
		slog.SetDefault(logger)
	}

	p, err := project.Open(cfg.Project.Path, cfg.Project.Search)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("project", p.Dir()),
		slog.String("republish", cfg.Watch.Publish),
		slog.String("debounce", cfg.Watch.Debounce.String()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.Watch(gCtx, p, watch.Config{
			Debounce: cfg.Watch.Debounce,
			Ignore:   cfg.Watch.Ignore,
			OnChange: app.onChange(p, logger),
			Logger:   logger,
		})
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watch stopped")
	return nil
}

func (a *application) onChange(p *project.Project, logger *slog.Logger) func(context.Context, []string) error {
	if a.config.Watch.Publish == "" {
		return nil
	}
	return func(ctx context.Context, changed []string) error {
		logger.Debug("republish: triggered", slog.Int("changed", len(changed)))
		_, err := Republish(ctx, p, a.config, a.runner, logger)
		return err
	}
}

// Republish publishes every document matched by cfg.Watch.Publish and
// returns the files written. A configured output only fits a single
// document.
func Republish(ctx context.Context, p *project.Project, cfg *Config, runner publish.Runner, logger *slog.Logger) ([]string, error) {
	nodes, err := pattern.Resolve(ctx, p.Root(), cfg.Watch.Publish)
	if err != nil {
		return nil, err
	}
	nodes = pattern.Unique(nodes)
	if len(nodes) == 0 {
		logger.Warn("republish: no documents match", slog.String("pattern", cfg.Watch.Publish))
		return nil, nil
	}
	if cfg.Watch.Output != "" && len(nodes) > 1 {
		return nil, apperr.New(apperr.ErrInvalidArgument, "%q matches %d documents but there is one output", cfg.Watch.Publish, len(nodes))
	}

	var outputs []string
	for _, n := range nodes {
		c, ok := n.(project.Container)
		if !ok {
			continue
		}
		opts := cfg.Publish.Options()
		opts.Output = cfg.Watch.Output
		opts.Logger = logger
		opts.Runner = runner
		out, err := publish.Publish(ctx, c, opts)
		if err != nil {
			return outputs, fmt.Errorf("republish %s: %w", n.Path(), err)
		}
		logger.Info("republish: done", slog.String("document", n.Path()), slog.String("output", out))
		outputs = append(outputs, out)
	}
	return outputs, nil
}
