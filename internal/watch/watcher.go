// Package watch follows edits made to a project from outside the process.
//
// Every directory of the project is watched. Changed files are collected
// until the project has been quiet for the debounce period; then the
// project's property and manifest caches are dropped and the OnChange
// callback runs once with the changed paths. Writes that leave a file's
// content unchanged are not reported.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/checksum"
	"github.com/starford/stew/internal/project"
)

const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are never reported: hidden files (including stew's own
// temporary files) and published output.
var defaultIgnores = []string{
	"**/.*",
	"**/.*/**",
	"_published",
	"_published/**",
	"**/*~",
}

// Config controls a watch.
type Config struct {
	// Debounce is the quiet period before OnChange runs.
	Debounce time.Duration
	// Ignore holds extra doublestar patterns, relative to the project
	// directory, for paths that never trigger OnChange.
	Ignore []string
	// OnChange receives the changed paths, relative to the project
	// directory and sorted. Its error is logged and the watch goes on.
	OnChange func(ctx context.Context, changed []string) error
	Logger   *slog.Logger
}

type watcher struct {
	cfg     Config
	project *project.Project
	fsw     *fsnotify.Watcher
	ignores []string
	sums    map[string]string
	logger  *slog.Logger
}

// Watch blocks until ctx is cancelled. It returns nil on cancellation.
func Watch(ctx context.Context, p *project.Project, cfg Config) error {
	for _, pat := range cfg.Ignore {
		if !doublestar.ValidatePattern(pat) {
			return apperr.New(apperr.ErrInvalidArgument, "bad ignore pattern %q", pat)
		}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fsw.Close()

	w := &watcher{
		cfg:     cfg,
		project: p,
		fsw:     fsw,
		ignores: append(slices.Clone(defaultIgnores), cfg.Ignore...),
		sums:    make(map[string]string),
		logger:  logger,
	}
	if err := w.addTree(p.Dir()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", p.Dir()))
	return w.loop(ctx)
}

func (w *watcher) loop(ctx context.Context) error {
	var (
		pending = make(map[string]struct{})
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-fire:
			changed := make([]string, 0, len(pending))
			for rel := range pending {
				changed = append(changed, rel)
			}
			clear(pending)
			slices.Sort(changed)
			w.flush(ctx, changed)

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			rel, ok := w.relevant(ev)
			if !ok {
				continue
			}
			w.logger.Debug("watcher: changed", slog.String("path", rel), slog.String("op", ev.Op.String()))
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
				fire = timer.C
			} else {
				timer.Reset(w.cfg.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// relevant reports whether ev changes the project, and the changed path
// relative to the project directory.
func (w *watcher) relevant(ev fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.project.Dir(), ev.Name)
	if err != nil || w.ignored(rel) {
		return "", false
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		delete(w.sums, rel)
		return rel, true
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if err := w.addTree(ev.Name); err != nil {
			w.logger.Warn("watcher: add new dir failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
		return rel, true
	}

	sum, err := checksum.File(ev.Name)
	if err != nil {
		return "", false
	}
	if w.sums[rel] == sum {
		return "", false
	}
	w.sums[rel] = sum
	return rel, true
}

func (w *watcher) flush(ctx context.Context, changed []string) {
	w.project.ClearCache()
	w.logger.Info("watcher: project changed", slog.Int("files", len(changed)))
	if w.cfg.OnChange == nil {
		return
	}
	if err := w.cfg.OnChange(ctx, changed); err != nil {
		w.logger.Warn("watcher: callback failed", slog.String("error", err.Error()))
	}
}

func (w *watcher) ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// addTree watches root and the directories below it, and records the
// digest of every file so later rewrites can be compared.
func (w *watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(w.project.Dir(), path)
		if err != nil {
			return nil
		}
		if rel != "." && w.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		if sum, err := checksum.File(path); err == nil {
			w.sums[rel] = sum
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: add %s: %w", root, err)
	}
	return nil
}
