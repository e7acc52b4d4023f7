// Package apperr defines the error kinds shared by every stew package.
//
// Errors are reported by wrapping one of the sentinels below, so callers
// check the kind with errors.Is and still get a descriptive message.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrTroublesomeName    = errors.New("troublesome name")
	ErrAmbiguousSelection = errors.New("ambiguous selection")
	ErrCannotModifyRoot   = errors.New("cannot modify project root")
	ErrCannotMoveIntoSelf = errors.New("cannot move into self")
	ErrInvalidValue       = errors.New("invalid value")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOutsideProject     = errors.New("outside project")
	ErrMissingTool        = errors.New("missing tool")
	ErrToolFailure        = errors.New("tool failure")
	ErrProjectNotFound    = errors.New("project not found")
)

var kinds = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrTroublesomeName,
	ErrAmbiguousSelection,
	ErrCannotModifyRoot,
	ErrCannotMoveIntoSelf,
	ErrInvalidValue,
	ErrInvalidArgument,
	ErrOutsideProject,
	ErrMissingTool,
	ErrToolFailure,
	ErrProjectNotFound,
}

// New wraps kind with a formatted message.
func New(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind returns the sentinel text of the first kind err wraps, or "" when
// err carries none.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return ""
}
