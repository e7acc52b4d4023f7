package publish

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/starford/stew/internal/apperr"
)

// Runner starts external tools.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs tools as child processes. A tool that cannot be found is
// reported as apperr.ErrMissingTool, a non-zero exit or a signal as
// apperr.ErrToolFailure.
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("publish: exec", slog.String("tool", name), slog.String("args", strings.Join(args, " ")))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return apperr.New(apperr.ErrMissingTool, "%s is not installed", name)
	case errors.As(err, &exitErr):
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = exitErr.Error()
		}
		return apperr.New(apperr.ErrToolFailure, "%s: %s", name, msg)
	default:
		return apperr.New(apperr.ErrToolFailure, "%s: %v", name, err)
	}
}

// DefaultConvertExtensions lists the primary file formats the compiler
// cannot read, which are converted by LibreOffice first.
var DefaultConvertExtensions = []string{".odt", ".fodt", ".doc", ".rtf", ".sxw", ".uof", ".wpd"}

// conversion is a LibreOffice export filter and the extension of the file
// it writes.
type conversion struct {
	filter string
	ext    string
}

var (
	toHTML = conversion{filter: "html:HTML", ext: ".html"}
	toText = conversion{filter: "txt:Text", ext: ".txt"}
)

// args builds a headless conversion. The separate profile lets the
// conversion run while another instance is open.
func (c conversion) args(profile, outDir, file string) []string {
	return []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profile),
		"--headless",
		"--convert-to", c.filter,
		"--outdir", outDir,
		file,
	}
}

// output is where LibreOffice leaves the conversion of file: it always
// names the output after the input.
func (c conversion) output(outDir, file string) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(outDir, base+c.ext)
}

func compileArgs(output string, files []string) []string {
	return append([]string{"-s", "-o", output}, files...)
}
