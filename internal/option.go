package internal

import (
	"log/slog"

	"github.com/starford/stew/internal/publish"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
	runner publish.Runner
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithRunner sets how republishing starts external tools.
func WithRunner(r publish.Runner) Option {
	return func(a *application) {
		a.runner = r
	}
}
