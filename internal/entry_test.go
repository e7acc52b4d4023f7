package internal

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/stew/internal/apperr"
	"github.com/starford/stew/internal/project"
	"github.com/starford/stew/internal/testutil"
)

// countingRunner stands in for pandoc and LibreOffice.
type countingRunner struct {
	mu      sync.Mutex
	outputs []string
}

func (r *countingRunner) Run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "pandoc" {
		r.outputs = append(r.outputs, args[2])
	}
	return nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outputs)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func book(t *testing.T) string {
	t.Helper()
	return testutil.Project(t, `{"defaultDocExtension":"md"}`, testutil.Files{
		"book_properties.json":     `{"publish":true}`,
		"book/ch1_properties.json": `{"publish":true}`,
		"book/ch1.md":              "one",
		"notes.md":                 "",
	})
}

func TestRepublish(t *testing.T) {
	dir := book(t)
	p := project.New(dir)
	cfg := NewDefaultConfig()
	cfg.Publish.TempDir = t.TempDir()
	cfg.Watch.Publish = "{book,nothing}"
	cfg.Watch.Output = filepath.Join(t.TempDir(), "book.html")
	runner := &countingRunner{}

	outs, err := Republish(context.Background(), p, cfg, runner, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != 1 || outs[0] != cfg.Watch.Output {
		t.Errorf("outputs = %v", outs)
	}

	cfg.Watch.Publish = "*"
	if _, err := Republish(context.Background(), p, cfg, runner, quietLogger()); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("several documents, one output: err = %v", err)
	}

	cfg.Watch.Publish = "missing"
	if outs, err := Republish(context.Background(), p, cfg, runner, quietLogger()); err != nil || len(outs) != 0 {
		t.Errorf("no match = %v, %v", outs, err)
	}
}

func TestRunRepublishesOnChange(t *testing.T) {
	dir := book(t)
	cfg := NewDefaultConfig()
	cfg.Project.Path = filepath.Join(dir, "book")
	cfg.Publish.TempDir = t.TempDir()
	cfg.Watch.Debounce = 50 * time.Millisecond
	cfg.Watch.Publish = "/book"
	cfg.Watch.Output = filepath.Join(t.TempDir(), "book.html")
	runner := &countingRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, WithConfig(cfg), WithLogger(quietLogger()), WithRunner(runner))
	}()
	time.Sleep(150 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "book", "ch1.md"), []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for runner.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runner.count() == 0 {
		t.Error("change did not republish")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunRequiresProject(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Project.Path = t.TempDir()
	cfg.Project.Search = false
	err := Run(context.Background(), WithConfig(cfg), WithLogger(quietLogger()))
	if !errors.Is(err, apperr.ErrProjectNotFound) {
		t.Errorf("err = %v", err)
	}
	if err := Run(context.Background()); err == nil {
		t.Error("missing config accepted")
	}
}
