package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the filesystem error taxonomy. Callers match with
// errors.Is; messages mirror the Unix strerror text so a shell layer can
// render familiar diagnostics.
var (
	ErrNotFound          = errors.New("no such file or directory")
	ErrExist             = errors.New("file exists")
	ErrNotADirectory     = errors.New("not a directory")
	ErrIsADirectory      = errors.New("is a directory")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidPath       = errors.New("invalid path")
	ErrTooManyLinks      = errors.New("too many levels of symbolic links")
	ErrBusy              = errors.New("device or resource busy")
	ErrInvalidFormat     = errors.New("invalid permission format")
	ErrUnsupportedMode   = errors.New("unsupported access mode")
	ErrUnsupported       = errors.New("operation not supported")
)

// PathError records an operation, the path it was attempted on, and the
// underlying failure.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// PermissionError carries the attempted access mode and the ownership
// classification the evaluator used, for diagnostics. It unwraps to
// ErrPermissionDenied so errors.Is works against the sentinel.
type PermissionError struct {
	Path  string
	Mode  string // requested mode, e.g. "rw-"
	Class string // owner, group or other
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s (requested %s as %s)", e.Path, e.Mode, e.Class)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}
