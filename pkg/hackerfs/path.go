package hackerfs

import (
	"fmt"
	"strings"

	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
)

// UserDirs supplies home directories for "~user" expansion. It is the
// narrow seam to the external user-directory subsystem; the filesystem
// itself knows nothing about users beyond numeric IDs.
type UserDirs interface {
	// HomeDir returns the home directory of the named user, or false if
	// the user is unknown.
	HomeDir(username string) (string, bool)
}

// UserDirsFunc is a function adapter for UserDirs.
type UserDirsFunc func(username string) (string, bool)

// HomeDir implements UserDirs.
func (f UserDirsFunc) HomeDir(username string) (string, bool) { return f(username) }

// Normalize folds a path into canonical absolute form: empty segments
// and "." are dropped, ".." pops the previous segment and never
// underflows past root. Relative input is treated as rooted. The result
// is idempotent and comparison stays case-sensitive.
func Normalize(path string) string {
	segs := strings.Split(path, "/")
	kept := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case "", ".":
		case "..":
			if len(kept) > 0 {
				kept = kept[:len(kept)-1]
			}
		default:
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "/"
	}
	return "/" + strings.Join(kept, "/")
}

// Resolver turns user-supplied path strings plus a working-directory
// context into canonical absolute paths.
type Resolver struct {
	users UserDirs
}

// NewResolver creates a resolver. users may be nil, in which case
// "~user" forms fail with ErrInvalidPath.
func NewResolver(users UserDirs) *Resolver {
	return &Resolver{users: users}
}

// Resolve expands "~", "~/rest" and "~user/rest", prepends cwd for
// relative input, and normalizes. callerHome is the acting user's home
// directory, empty if unknown.
func (r *Resolver) Resolve(input, cwd, callerHome string) (string, error) {
	if input == "" {
		return "", &core.PathError{Op: "resolve", Path: input, Err: core.ErrInvalidPath}
	}

	if strings.HasPrefix(input, "~") {
		expanded, err := r.expandTilde(input, callerHome)
		if err != nil {
			return "", err
		}
		input = expanded
	}

	if !strings.HasPrefix(input, "/") {
		if cwd == "" {
			cwd = "/"
		}
		input = strings.TrimSuffix(cwd, "/") + "/" + input
	}

	return Normalize(input), nil
}

func (r *Resolver) expandTilde(input, callerHome string) (string, error) {
	rest := input[1:]

	// Bare "~" or "~/rest": the acting user's home.
	if rest == "" || strings.HasPrefix(rest, "/") {
		if callerHome == "" {
			return "", &core.PathError{Op: "resolve", Path: input,
				Err: fmt.Errorf("home directory unknown: %w", core.ErrInvalidPath)}
		}
		return callerHome + rest, nil
	}

	// "~user" or "~user/rest".
	name := rest
	if i := strings.Index(rest, "/"); i >= 0 {
		name, rest = rest[:i], rest[i:]
	} else {
		rest = ""
	}
	if r.users == nil {
		return "", &core.PathError{Op: "resolve", Path: input,
			Err: fmt.Errorf("no user directory source: %w", core.ErrInvalidPath)}
	}
	home, ok := r.users.HomeDir(name)
	if !ok {
		return "", &core.PathError{Op: "resolve", Path: input,
			Err: fmt.Errorf("unknown user %q: %w", name, core.ErrInvalidPath)}
	}
	return home + rest, nil
}
