package internal

import (
	"errors"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/stew/internal/publish"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	Project ProjectConfig     `yaml:"project" toml:"project"`
	Publish PublishConfig     `yaml:"publish" toml:"publish"`
	Watch   WatchConfig       `yaml:"watch" toml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Project.Validate(); err != nil {
		return err
	}
	if err := c.Publish.Validate(); err != nil {
		return err
	}
	return c.Watch.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level" toml:"log_level"`
	LogFormat string     `yaml:"log_format" toml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// Logger builds the logger described by the configuration.
func (c *ApplicationConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ProjectConfig locates the project.
//
// Search walks up from Path to the first directory holding a project
// manifest, so commands work from anywhere inside a project.
type ProjectConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Search bool   `yaml:"search" toml:"search"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PublishConfig names the external tools used by publish.
type PublishConfig struct {
	Converter         string   `yaml:"converter" toml:"converter"`
	Compiler          string   `yaml:"compiler" toml:"compiler"`
	ConvertExtensions []string `yaml:"convert_extensions" toml:"convert_extensions"`
	TempDir           string   `yaml:"temp_dir" toml:"temp_dir"`
}

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Converter, validation.Required),
		validation.Field(&c.Compiler, validation.Required),
		validation.Field(&c.ConvertExtensions, validation.Each(validation.Match(extPattern))),
	)
}

// Options returns publish options using the configured tools.
func (c *PublishConfig) Options() publish.Options {
	return publish.Options{
		Converter:         c.Converter,
		Compiler:          c.Compiler,
		ConvertExtensions: c.ConvertExtensions,
		TempDir:           c.TempDir,
	}
}

// WatchConfig controls watch mode.
//
// When Publish holds a document pattern, every change republishes the
// matching documents, to Output when set.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
	Ignore   []string      `yaml:"ignore" toml:"ignore"`
	Publish  string        `yaml:"publish" toml:"publish"`
	Output   string        `yaml:"output" toml:"output"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(10*time.Millisecond)),
		validation.Field(&c.Ignore, validation.Each(validation.By(isGlob))),
	)
}

func isGlob(value any) error {
	s, _ := value.(string)
	if !doublestar.ValidatePattern(s) {
		return errors.New("must be a valid glob")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Project: ProjectConfig{
			Path:   ".",
			Search: true,
		},
		Publish: PublishConfig{
			Converter:         "libreoffice",
			Compiler:          "pandoc",
			ConvertExtensions: slices.Clone(publish.DefaultConvertExtensions),
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}
